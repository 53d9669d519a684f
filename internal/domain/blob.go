package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves data from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves settled bets from the database to cold storage.
type Archiver interface {
	// ArchiveResolvedBets uploads all resolved bets whose resolve date is
	// before the cutoff and returns the number of records archived.
	ArchiveResolvedBets(ctx context.Context, before time.Time) (int64, error)

	// ListArchives returns metadata for every archive file in storage.
	ListArchives(ctx context.Context) ([]BlobInfo, error)
}
