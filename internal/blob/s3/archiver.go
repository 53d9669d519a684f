package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// archiveBatchLimit caps how many bets one store query returns. A run
// pages past the cap so the whole backlog lands in a single object.
const archiveBatchLimit = 10_000

// archivePrefix is the key prefix shared by every archive object.
const archivePrefix = "archive/bets/"

// BetArchiveStore provides the read access the archiver needs. The
// Postgres bet store satisfies it implicitly.
type BetArchiveStore interface {
	// ListResolvedBefore returns resolved bets with a resolve date strictly
	// before the cutoff, oldest first, paged by limit and offset.
	ListResolvedBefore(ctx context.Context, cutoff time.Time, limit, offset int) ([]domain.Bet, error)
}

// ArchiveImpl implements domain.Archiver by querying the bet store for
// settled bets, serializing them to JSONL, and uploading the result to S3.
//
// Deletion of the archived rows from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer    domain.BlobWriter
	reader    domain.BlobReader
	bets      BetArchiveStore
	batchSize int
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, bets BetArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:    writer,
		reader:    reader,
		bets:      bets,
		batchSize: archiveBatchLimit,
	}
}

// ArchiveResolvedBets pages through every resolved bet older than the
// cutoff, serializes them to JSONL, and uploads the file to S3 at
// archive/bets/YYYY-MM.jsonl, partitioned by the cutoff month. Re-runs
// overwrite the month's object with the full set, so the operation is
// idempotent. Returns the count of archived records.
func (a *ArchiveImpl) ArchiveResolvedBets(ctx context.Context, before time.Time) (int64, error) {
	var bets []domain.Bet
	for offset := 0; ; offset += a.batchSize {
		page, err := a.bets.ListResolvedBefore(ctx, before, a.batchSize, offset)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive bets query: %w", err)
		}
		bets = append(bets, page...)
		if len(page) < a.batchSize {
			break
		}
	}
	if len(bets) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(bets)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bets marshal: %w", err)
	}

	path := archivePath(before)
	if int64(len(buf)) >= minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bets upload: %w", err)
	}

	return int64(len(bets)), nil
}

// ListArchives returns metadata for every uploaded archive file.
func (a *ArchiveImpl) ListArchives(ctx context.Context) ([]domain.BlobInfo, error) {
	infos, err := a.reader.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list archives: %w", err)
	}
	return infos, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/bets/2026-01.jsonl
func archivePath(before time.Time) string {
	return fmt.Sprintf("%s%s.jsonl", archivePrefix, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
