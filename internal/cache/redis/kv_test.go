package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

// NewKV(nil) runs on the in-process fallback only, which is what these
// tests exercise; the Redis path shares the same envelope logic.

type testValue struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func TestKVSetGet(t *testing.T) {
	kv := NewKV(nil)
	ctx := context.Background()

	want := testValue{Symbol: "BTC", Price: 97250.5}
	if err := kv.Set(ctx, "crypto:price:BTC", want, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got testValue
	ok, err := kv.Get(ctx, "crypto:price:BTC", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get: expected hit")
	}
	if got != want {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestKVGetMiss(t *testing.T) {
	kv := NewKV(nil)

	var got testValue
	ok, err := kv.Get(context.Background(), "crypto:price:ETH", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get: expected miss for absent key")
	}
}

func TestKVLogicalExpiry(t *testing.T) {
	kv := NewKV(nil)
	ctx := context.Background()

	want := testValue{Symbol: "SOL", Price: 142.0}
	// Zero ttl makes the entry logically expired immediately while the
	// fallback map still retains it.
	if err := kv.Set(ctx, "crypto:price:SOL", want, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got testValue
	ok, err := kv.Get(ctx, "crypto:price:SOL", &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get: expected miss for logically expired entry")
	}

	ok, err = kv.GetStale(ctx, "crypto:price:SOL", &got)
	if err != nil {
		t.Fatalf("GetStale: %v", err)
	}
	if !ok {
		t.Fatal("GetStale: expected hit for retained entry")
	}
	if got != want {
		t.Errorf("GetStale = %+v, want %+v", got, want)
	}
}

func TestKVGetOrFetch(t *testing.T) {
	kv := NewKV(nil)
	ctx := context.Background()

	calls := 0
	fetch := func(ctx context.Context) (any, error) {
		calls++
		return testValue{Symbol: "BTC", Price: 100.0}, nil
	}

	var got testValue
	cached, err := kv.GetOrFetch(ctx, "k", &got, time.Minute, fetch)
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if cached {
		t.Error("first GetOrFetch should not report cached")
	}
	if got.Price != 100.0 {
		t.Errorf("got price %v, want 100", got.Price)
	}

	cached, err = kv.GetOrFetch(ctx, "k", &got, time.Minute, fetch)
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if !cached {
		t.Error("second GetOrFetch should report cached")
	}
	if calls != 1 {
		t.Errorf("fetch ran %d times, want 1", calls)
	}
}

func TestKVGetOrFetchError(t *testing.T) {
	kv := NewKV(nil)
	ctx := context.Background()

	fetchErr := errors.New("upstream down")
	var got testValue
	_, err := kv.GetOrFetch(ctx, "k", &got, time.Minute, func(ctx context.Context) (any, error) {
		return nil, fetchErr
	})
	if !errors.Is(err, fetchErr) {
		t.Errorf("GetOrFetch error = %v, want %v", err, fetchErr)
	}

	// The failed fetch must not leave anything behind.
	ok, _ := kv.GetStale(ctx, "k", &got)
	if ok {
		t.Error("failed fetch should not populate the cache")
	}
}

func TestKVInvalidatePrefix(t *testing.T) {
	kv := NewKV(nil)
	ctx := context.Background()

	keys := []string{"crypto:price:BTC", "crypto:price:ETH", "stock:quote:TSLA"}
	for _, k := range keys {
		if err := kv.Set(ctx, k, testValue{Symbol: k}, time.Minute); err != nil {
			t.Fatalf("Set %s: %v", k, err)
		}
	}

	n, err := kv.InvalidatePrefix(ctx, "crypto:price:")
	if err != nil {
		t.Fatalf("InvalidatePrefix: %v", err)
	}
	if n != 2 {
		t.Errorf("InvalidatePrefix removed %d, want 2", n)
	}

	var got testValue
	if ok, _ := kv.Get(ctx, "stock:quote:TSLA", &got); !ok {
		t.Error("unrelated key should survive prefix invalidation")
	}
	if ok, _ := kv.Get(ctx, "crypto:price:BTC", &got); ok {
		t.Error("prefixed key should be gone")
	}
}
