package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polytrack/polytrack/internal/domain"
)

// usageRetention keeps yesterday's counters around briefly for debugging.
const usageRetention = 48 * time.Hour

// UsageTracker implements domain.UsageTracker with daily Redis counters,
// one per service/endpoint pair. Counters are advisory: they annotate
// the api-usage report and never gate a request.
type UsageTracker struct {
	rdb    *redis.Client
	limits map[string]int64 // service -> daily budget, 0 = unlimited
}

// NewUsageTracker creates a UsageTracker backed by the given Client.
func NewUsageTracker(c *Client, limits map[string]int64) *UsageTracker {
	return &UsageTracker{rdb: c.Underlying(), limits: limits}
}

func usageKey(day, service, endpoint string) string {
	return fmt.Sprintf("apiusage:%s:%s:%s", day, service, endpoint)
}

// Record increments today's counter for a service/endpoint pair.
func (ut *UsageTracker) Record(ctx context.Context, service, endpoint string) error {
	day := time.Now().UTC().Format("2006-01-02")
	key := usageKey(day, service, endpoint)

	pipe := ut.rdb.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, usageRetention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: record usage %s/%s: %w", service, endpoint, err)
	}
	return nil
}

// Snapshot returns today's counters across all tracked endpoints,
// sorted by service then endpoint.
func (ut *UsageTracker) Snapshot(ctx context.Context) ([]domain.APIUsage, error) {
	day := time.Now().UTC().Format("2006-01-02")
	prefix := fmt.Sprintf("apiusage:%s:", day)

	iter := ut.rdb.Scan(ctx, 0, prefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan usage: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := ut.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read usage: %w", err)
	}

	usages := make([]domain.APIUsage, 0, len(keys))
	for i, key := range keys {
		rest := strings.TrimPrefix(key, prefix)
		service, endpoint, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		var calls int64
		if s, ok := vals[i].(string); ok {
			calls, _ = strconv.ParseInt(s, 10, 64)
		}
		usages = append(usages, domain.APIUsage{
			Service:    service,
			Endpoint:   endpoint,
			CallsToday: calls,
			DailyLimit: ut.limits[service],
		})
	}

	sort.Slice(usages, func(i, j int) bool {
		if usages[i].Service != usages[j].Service {
			return usages[i].Service < usages[j].Service
		}
		return usages[i].Endpoint < usages[j].Endpoint
	})
	return usages, nil
}

// Compile-time interface check.
var _ domain.UsageTracker = (*UsageTracker)(nil)
