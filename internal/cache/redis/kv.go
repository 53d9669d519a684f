package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/polytrack/polytrack/internal/domain"
)

// minRetention bounds how long logically expired entries stay readable
// for stale rescue.
const minRetention = 24 * time.Hour

// envelope wraps every cached value so logical freshness can be checked
// independently of the key's physical Redis expiry.
type envelope struct {
	Data     json.RawMessage `json:"data"`
	StoredAt time.Time       `json:"storedAt"`
	TTLSec   int64           `json:"ttlSec"`
}

func (e envelope) fresh(now time.Time) bool {
	return now.Before(e.StoredAt.Add(time.Duration(e.TTLSec) * time.Second))
}

// KV implements domain.KVCache on Redis with an in-process fallback map.
// Writes and reads degrade to the fallback when Redis errors, so a Redis
// outage never takes the read path down with it.
type KV struct {
	rdb *redis.Client
	mem *memoryStore
}

// NewKV creates a KV cache backed by the given Client. A nil client is
// allowed and leaves the cache running on the in-process fallback only.
func NewKV(c *Client) *KV {
	kv := &KV{mem: newMemoryStore()}
	if c != nil {
		kv.rdb = c.Underlying()
	}
	return kv
}

func retention(ttl time.Duration) time.Duration {
	if r := ttl * 10; r > minRetention {
		return r
	}
	return minRetention
}

// Set stores value under key with the given logical freshness window.
func (kv *KV) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}
	raw, err := json.Marshal(envelope{
		Data:     data,
		StoredAt: time.Now(),
		TTLSec:   int64(ttl / time.Second),
	})
	if err != nil {
		return fmt.Errorf("redis: marshal envelope %s: %w", key, err)
	}

	if kv.rdb != nil {
		if err := kv.rdb.Set(ctx, key, raw, retention(ttl)).Err(); err == nil {
			return nil
		}
	}
	kv.mem.set(key, raw, retention(ttl))
	return nil
}

// Get unmarshals a fresh entry into dest, reporting false on miss or
// logical expiry. Undecodable entries count as misses.
func (kv *KV) Get(ctx context.Context, key string, dest any) (bool, error) {
	env, ok := kv.load(ctx, key)
	if !ok || !env.fresh(time.Now()) {
		return false, nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return false, nil
	}
	return true, nil
}

// GetStale unmarshals an entry into dest ignoring logical expiry.
func (kv *KV) GetStale(ctx context.Context, key string, dest any) (bool, error) {
	env, ok := kv.load(ctx, key)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(env.Data, dest); err != nil {
		return false, nil
	}
	return true, nil
}

// GetOrFetch returns a fresh cached entry when present, otherwise runs
// fetch, stores the result, and decodes it into dest. Fetch errors
// propagate unchanged so callers can attempt stale rescue.
func (kv *KV) GetOrFetch(ctx context.Context, key string, dest any, ttl time.Duration, fetch domain.FetchFunc) (bool, error) {
	if ok, err := kv.Get(ctx, key, dest); err == nil && ok {
		return true, nil
	}

	value, err := fetch(ctx)
	if err != nil {
		return false, err
	}

	if err := kv.Set(ctx, key, value, ttl); err != nil {
		return false, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("redis: marshal fetched %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("redis: decode fetched %s: %w", key, err)
	}
	return false, nil
}

// Invalidate removes a single key from both stores.
func (kv *KV) Invalidate(ctx context.Context, key string) error {
	kv.mem.delete(key)
	if kv.rdb == nil {
		return nil
	}
	if err := kv.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis: invalidate %s: %w", key, err)
	}
	return nil
}

// InvalidatePrefix removes every key with the given prefix and reports
// how many were removed.
func (kv *KV) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	n := kv.mem.deletePrefix(prefix)
	if kv.rdb == nil {
		return n, nil
	}

	iter := kv.rdb.Scan(ctx, 0, prefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("redis: scan %s: %w", prefix, err)
	}
	if len(keys) > 0 {
		deleted, err := kv.rdb.Del(ctx, keys...).Result()
		if err != nil {
			return n, fmt.Errorf("redis: invalidate prefix %s: %w", prefix, err)
		}
		n += int(deleted)
	}
	return n, nil
}

// load reads the envelope for key, preferring Redis and falling back to
// the in-process map on error or miss.
func (kv *KV) load(ctx context.Context, key string) (envelope, bool) {
	if kv.rdb != nil {
		raw, err := kv.rdb.Get(ctx, key).Bytes()
		if err == nil {
			var env envelope
			if json.Unmarshal(raw, &env) == nil {
				return env, true
			}
			return envelope{}, false
		}
		// On redis.Nil or a transport error, fall through to the
		// fallback map; it may hold entries written during an outage.
	}

	raw, ok := kv.mem.get(key)
	if !ok {
		return envelope{}, false
	}
	var env envelope
	if json.Unmarshal(raw, &env) != nil {
		return envelope{}, false
	}
	return env, true
}

// Compile-time interface check.
var _ domain.KVCache = (*KV)(nil)
