package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/service"
)

// AnalyticsService defines the methods that the analytics handler
// requires from the service layer.
type AnalyticsService interface {
	Portfolio(ctx context.Context) (service.PortfolioSummary, error)
	Performance(ctx context.Context) (service.PerformanceSummary, error)
	ByType(ctx context.Context) ([]service.TypeBreakdown, error)
	APIUsage(ctx context.Context) ([]domain.APIUsage, error)
}

// AnalyticsHandler serves portfolio reporting endpoints.
type AnalyticsHandler struct {
	analytics AnalyticsService
	logger    *slog.Logger
}

// NewAnalyticsHandler creates an AnalyticsHandler with the given service
// and logger.
func NewAnalyticsHandler(analytics AnalyticsService, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    logger,
	}
}

// Portfolio returns the open-position summary.
// GET /api/analytics/portfolio
func (h *AnalyticsHandler) Portfolio(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Portfolio(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "portfolio summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Performance returns the resolved-bet performance summary.
// GET /api/analytics/performance
func (h *AnalyticsHandler) Performance(w http.ResponseWriter, r *http.Request) {
	summary, err := h.analytics.Performance(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "performance summary")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ByType returns a per-category breakdown of every tracked bet.
// GET /api/analytics/by-type
func (h *AnalyticsHandler) ByType(w http.ResponseWriter, r *http.Request) {
	breakdown, err := h.analytics.ByType(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "type breakdown")
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

// APIUsage returns today's advisory call counters per upstream endpoint.
// GET /api/analytics/api-usage
func (h *AnalyticsHandler) APIUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.analytics.APIUsage(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "api usage")
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
