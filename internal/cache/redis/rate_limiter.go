package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polytrack/polytrack/internal/domain"
)

// RateLimiter implements domain.RateLimiter with a fixed-window counter
// per key. Window boundaries are aligned to wall-clock multiples of the
// window size, so every process agrees on the current bucket.
type RateLimiter struct {
	rdb *redis.Client
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying()}
}

func windowKey(key string, window time.Duration) string {
	bucket := time.Now().UnixMilli() / window.Milliseconds()
	return fmt.Sprintf("ratelimit:%s:%d", key, bucket)
}

// Allow counts a request against the key's current window and reports
// whether it fits under limit.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	k := windowKey(key, window)

	pipe := rl.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: rate limit %s: %w", key, err)
	}

	return incr.Val() <= int64(limit), nil
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
