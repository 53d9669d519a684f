// Package service holds the application services: live-data aggregation
// over ordered provider chains, bet lifecycle and analytics, and wallet
// import. Services own caching policy; providers stay cache-free.
package service

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// StaleWarning is attached to responses served from an expired cache
// entry after every upstream failed.
const StaleWarning = "Using cached data - live APIs unavailable"

// Notifier delivers operator alerts for an event type. Delivery is
// best-effort; callers log failures and move on.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// History windows of a day or less refresh often; longer windows are
// mostly settled and can live half an hour.
const (
	shortHistoryTTL = 5 * time.Minute
	longHistoryTTL  = 30 * time.Minute
)

func historyTTL(days int) time.Duration {
	if days <= 1 {
		return shortHistoryTTL
	}
	return longHistoryTTL
}

// batchKey builds a deterministic cache key for a symbol set.
func batchKey(prefix string, symbols []string) string {
	sorted := make([]string, len(symbols))
	for i, s := range symbols {
		sorted[i] = strings.ToUpper(s)
	}
	sort.Strings(sorted)
	return prefix + strings.Join(sorted, ",")
}

// recordUsage bumps the advisory call counter, logging instead of
// failing when the tracker is unavailable.
func recordUsage(ctx context.Context, usage domain.UsageTracker, logger *slog.Logger, service, endpoint string) {
	if usage == nil {
		return
	}
	if err := usage.Record(ctx, service, endpoint); err != nil {
		logger.DebugContext(ctx, "usage record failed",
			slog.String("service", service),
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
	}
}
