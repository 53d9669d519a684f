package domain

import (
	"context"
	"time"
)

// FetchFunc produces a fresh value for a cache key.
type FetchFunc func(ctx context.Context) (any, error)

// KVCache is a read-through cache over JSON-serializable values.
//
// Implementations distinguish logical freshness (the ttl passed to Set)
// from physical retention: a logically expired entry is a miss for Get
// but remains visible to GetStale so callers can serve last-known data
// when every upstream is down.
type KVCache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Get unmarshals a fresh entry into dest. Returns false on miss or
	// logical expiry.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// GetStale unmarshals an entry into dest ignoring logical expiry.
	GetStale(ctx context.Context, key string, dest any) (bool, error)
	// GetOrFetch returns a fresh entry when present (cached=true),
	// otherwise runs fetch, stores the result under key, and unmarshals
	// it into dest (cached=false). Fetch errors propagate unchanged.
	GetOrFetch(ctx context.Context, key string, dest any, ttl time.Duration, fetch FetchFunc) (cached bool, err error)
	Invalidate(ctx context.Context, key string) error
	// InvalidatePrefix removes every key with the given prefix and
	// reports how many were removed.
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// UsageTracker keeps advisory daily call counters per upstream endpoint.
// Counters inform the api-usage report; they never block a request.
type UsageTracker interface {
	Record(ctx context.Context, service, endpoint string) error
	Snapshot(ctx context.Context) ([]APIUsage, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
