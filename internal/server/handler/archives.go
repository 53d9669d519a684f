package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/polytrack/polytrack/internal/domain"
)

// ArchiveRunner defines the cold-storage operations the handler exposes.
type ArchiveRunner interface {
	Run(ctx context.Context) error
}

// ArchiveHandler serves bet-archive inspection and trigger endpoints.
// It is only registered when S3 archival is enabled.
type ArchiveHandler struct {
	archiver domain.Archiver
	runner   ArchiveRunner
	logger   *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(archiver domain.Archiver, runner ArchiveRunner, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		archiver: archiver,
		runner:   runner,
		logger:   logger,
	}
}

// ListArchives returns metadata for every uploaded archive file.
// GET /api/archives
func (h *ArchiveHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	infos, err := h.archiver.ListArchives(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "list archives")
		return
	}
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// TriggerArchive runs one archive cycle outside the cron schedule.
// POST /api/archives/run
func (h *ArchiveHandler) TriggerArchive(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Run(r.Context()); err != nil {
		writeServiceError(w, r, h.logger, err, "archive run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}
