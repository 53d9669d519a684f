package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// fakeKV is an in-memory KVCache with explicit control over which
// entries count as fresh.
type fakeKV struct {
	fresh map[string][]byte
	stale map[string][]byte
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		fresh: make(map[string][]byte),
		stale: make(map[string][]byte),
	}
}

func (f *fakeKV) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.fresh[key] = raw
	return nil
}

func (f *fakeKV) Get(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := f.fresh[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeKV) GetStale(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := f.fresh[key]
	if !ok {
		raw, ok = f.stale[key]
	}
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (f *fakeKV) GetOrFetch(ctx context.Context, key string, dest any, ttl time.Duration, fetch domain.FetchFunc) (bool, error) {
	if ok, err := f.Get(ctx, key, dest); err != nil || ok {
		return ok, err
	}
	value, err := fetch(ctx)
	if err != nil {
		return false, err
	}
	if err := f.Set(ctx, key, value, ttl); err != nil {
		return false, err
	}
	_, err = f.Get(ctx, key, dest) // round-trip into dest
	return false, err
}

func (f *fakeKV) Invalidate(_ context.Context, key string) error {
	delete(f.fresh, key)
	delete(f.stale, key)
	return nil
}

func (f *fakeKV) InvalidatePrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for key := range f.fresh {
		if strings.HasPrefix(key, prefix) {
			delete(f.fresh, key)
			n++
		}
	}
	return n, nil
}

var _ domain.KVCache = (*fakeKV)(nil)

// expire moves a fresh entry into stale-only visibility.
func (f *fakeKV) expire(key string) {
	if raw, ok := f.fresh[key]; ok {
		f.stale[key] = raw
		delete(f.fresh, key)
	}
}

// fakePriceSource serves a fixed reading or error for every symbol in
// its table.
type fakePriceSource struct {
	name    string
	symbols []string
	price   float64
	err     error
	calls   int
}

func (f *fakePriceSource) Name() string { return f.name }

func (f *fakePriceSource) Supports(symbol string) bool {
	for _, s := range f.symbols {
		if s == strings.ToUpper(symbol) {
			return true
		}
	}
	return false
}

func (f *fakePriceSource) Symbols() []string { return f.symbols }

func (f *fakePriceSource) Price(_ context.Context, symbol string) (domain.PriceReading, error) {
	f.calls++
	if f.err != nil {
		return domain.PriceReading{}, f.err
	}
	return domain.PriceReading{
		Symbol:    strings.ToUpper(symbol),
		Price:     f.price,
		Source:    f.name,
		FetchedAt: time.Now(),
	}, nil
}

func (f *fakePriceSource) Prices(ctx context.Context, symbols []string) (map[string]domain.PriceReading, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.PriceReading, len(symbols))
	for _, sym := range symbols {
		r, _ := f.Price(ctx, sym)
		out[strings.ToUpper(sym)] = r
	}
	return out, nil
}

func (f *fakePriceSource) History(_ context.Context, symbol string, days int) (domain.PriceHistory, error) {
	f.calls++
	if f.err != nil {
		return domain.PriceHistory{}, f.err
	}
	return domain.PriceHistory{
		Symbol: strings.ToUpper(symbol),
		Days:   days,
		Points: []domain.PricePoint{{Time: time.Now(), Price: f.price}},
		Source: f.name,
	}, nil
}

var _ domain.PriceSource = (*fakePriceSource)(nil)

func TestCryptoServicePrimarySource(t *testing.T) {
	primary := &fakePriceSource{name: "primary", symbols: []string{"BTC"}, price: 110_000}
	fallback := &fakePriceSource{name: "fallback", symbols: []string{"BTC"}, price: 109_999}
	svc := NewCryptoService([]domain.PriceSource{primary, fallback}, newFakeKV(), nil, testLogger(), time.Minute)

	reading, err := svc.Price(context.Background(), "btc")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if reading.Source != "primary" || reading.Price != 110_000 {
		t.Errorf("reading = %+v", reading)
	}
	if fallback.calls != 0 {
		t.Errorf("fallback called %d times", fallback.calls)
	}
}

func TestCryptoServiceFallsBack(t *testing.T) {
	primary := &fakePriceSource{name: "primary", symbols: []string{"BTC"}, err: errors.New("boom")}
	fallback := &fakePriceSource{name: "fallback", symbols: []string{"BTC"}, price: 109_999}
	svc := NewCryptoService([]domain.PriceSource{primary, fallback}, newFakeKV(), nil, testLogger(), time.Minute)

	reading, err := svc.Price(context.Background(), "BTC")
	if err != nil {
		t.Fatalf("Price: %v", err)
	}
	if reading.Source != "fallback" {
		t.Errorf("source = %s, want fallback", reading.Source)
	}
}

func TestCryptoServiceCacheHitSkipsSources(t *testing.T) {
	src := &fakePriceSource{name: "primary", symbols: []string{"BTC"}, price: 110_000}
	svc := NewCryptoService([]domain.PriceSource{src}, newFakeKV(), nil, testLogger(), time.Minute)

	ctx := context.Background()
	if _, err := svc.Price(ctx, "BTC"); err != nil {
		t.Fatalf("first Price: %v", err)
	}
	if _, err := svc.Price(ctx, "BTC"); err != nil {
		t.Fatalf("second Price: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("source called %d times, want 1", src.calls)
	}
}

func TestCryptoServiceStaleRescue(t *testing.T) {
	src := &fakePriceSource{name: "primary", symbols: []string{"BTC"}, price: 110_000}
	kv := newFakeKV()
	svc := NewCryptoService([]domain.PriceSource{src}, kv, nil, testLogger(), time.Minute)

	ctx := context.Background()
	if _, err := svc.Price(ctx, "BTC"); err != nil {
		t.Fatalf("seed Price: %v", err)
	}

	kv.expire("crypto:price:BTC")
	src.err = errors.New("upstream down")

	reading, err := svc.Price(ctx, "BTC")
	if err != nil {
		t.Fatalf("rescue Price: %v", err)
	}
	if !reading.Stale {
		t.Error("expected stale flag")
	}
	if reading.Warning != StaleWarning {
		t.Errorf("warning = %q", reading.Warning)
	}
	if reading.Price != 110_000 {
		t.Errorf("price = %v", reading.Price)
	}
}

func TestCryptoServiceNoData(t *testing.T) {
	src := &fakePriceSource{name: "primary", symbols: []string{"BTC"}, err: errors.New("down")}
	svc := NewCryptoService([]domain.PriceSource{src}, newFakeKV(), nil, testLogger(), time.Minute)

	_, err := svc.Price(context.Background(), "BTC")
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

func TestCryptoServiceUnsupportedSymbol(t *testing.T) {
	src := &fakePriceSource{name: "primary", symbols: []string{"BTC"}}
	svc := NewCryptoService([]domain.PriceSource{src}, newFakeKV(), nil, testLogger(), time.Minute)

	_, err := svc.Price(context.Background(), "SHIB")
	if !errors.Is(err, domain.ErrUnsupportedAsset) {
		t.Fatalf("err = %v, want ErrUnsupportedAsset", err)
	}
}

func TestCryptoServicePricesMergesSources(t *testing.T) {
	primary := &fakePriceSource{name: "primary", symbols: []string{"BTC"}, price: 110_000}
	fallback := &fakePriceSource{name: "fallback", symbols: []string{"ETH"}, price: 4_000}
	svc := NewCryptoService([]domain.PriceSource{primary, fallback}, newFakeKV(), nil, testLogger(), time.Minute)

	readings, err := svc.Prices(context.Background(), []string{"BTC", "ETH", "SHIB"})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(readings) != 2 {
		t.Fatalf("got %d readings, want 2", len(readings))
	}
	if readings["BTC"].Source != "primary" || readings["ETH"].Source != "fallback" {
		t.Errorf("sources = %s/%s", readings["BTC"].Source, readings["ETH"].Source)
	}
}

func TestCryptoServicePricesRescuesPerSymbolEntries(t *testing.T) {
	src := &fakePriceSource{name: "primary", symbols: []string{"BTC", "ETH"}, price: 110_000}
	kv := newFakeKV()
	svc := NewCryptoService([]domain.PriceSource{src}, kv, nil, testLogger(), time.Minute)

	ctx := context.Background()
	if _, err := svc.Price(ctx, "BTC"); err != nil {
		t.Fatalf("seed Price: %v", err)
	}

	// This symbol pair has never been requested together, so only the
	// per-symbol entry exists when every source goes down.
	kv.expire("crypto:price:BTC")
	src.err = errors.New("upstream down")

	readings, err := svc.Prices(ctx, []string{"BTC", "ETH"})
	if err != nil {
		t.Fatalf("Prices: %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("got %d readings, want 1", len(readings))
	}
	btc, ok := readings["BTC"]
	if !ok {
		t.Fatal("BTC missing from rescued readings")
	}
	if !btc.Stale || btc.Warning != StaleWarning {
		t.Errorf("stale/warning = %v/%q", btc.Stale, btc.Warning)
	}
	if btc.Price != 110_000 {
		t.Errorf("price = %v", btc.Price)
	}
}

func TestCryptoServicePricesNoDataWithEmptyCache(t *testing.T) {
	src := &fakePriceSource{name: "primary", symbols: []string{"BTC"}, err: errors.New("down")}
	svc := NewCryptoService([]domain.PriceSource{src}, newFakeKV(), nil, testLogger(), time.Minute)

	_, err := svc.Prices(context.Background(), []string{"BTC", "ETH"})
	if !errors.Is(err, domain.ErrNoData) {
		t.Fatalf("err = %v, want ErrNoData", err)
	}
}

// fakeQuoteSource serves a fixed quote or error for every symbol.
type fakeQuoteSource struct {
	name  string
	price float64
	err   error
}

func (f *fakeQuoteSource) Name() string { return f.name }

func (f *fakeQuoteSource) Quote(_ context.Context, symbol string) (domain.StockQuote, error) {
	if f.err != nil {
		return domain.StockQuote{}, f.err
	}
	return domain.StockQuote{
		Symbol:    strings.ToUpper(symbol),
		Price:     f.price,
		Source:    f.name,
		FetchedAt: time.Now(),
	}, nil
}

func (f *fakeQuoteSource) Quotes(ctx context.Context, symbols []string) (map[string]domain.StockQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]domain.StockQuote, len(symbols))
	for _, sym := range symbols {
		q, _ := f.Quote(ctx, sym)
		out[strings.ToUpper(sym)] = q
	}
	return out, nil
}

func (f *fakeQuoteSource) History(_ context.Context, symbol string, days int) (domain.PriceHistory, error) {
	if f.err != nil {
		return domain.PriceHistory{}, f.err
	}
	return domain.PriceHistory{Symbol: strings.ToUpper(symbol), Days: days, Source: f.name}, nil
}

var _ domain.QuoteSource = (*fakeQuoteSource)(nil)

func TestStockServiceQuotesRescuesPerSymbolEntries(t *testing.T) {
	src := &fakeQuoteSource{name: "primary", price: 250}
	kv := newFakeKV()
	svc := NewStockService([]domain.QuoteSource{src}, kv, nil, testLogger(), time.Minute, time.Hour)

	ctx := context.Background()
	if _, err := svc.Quote(ctx, "TSLA"); err != nil {
		t.Fatalf("seed Quote: %v", err)
	}

	kv.expire("stock:quote:TSLA")
	src.err = errors.New("upstream down")

	quotes, err := svc.Quotes(ctx, []string{"TSLA", "AAPL"})
	if err != nil {
		t.Fatalf("Quotes: %v", err)
	}
	if len(quotes) != 1 {
		t.Fatalf("got %d quotes, want 1", len(quotes))
	}
	tsla, ok := quotes["TSLA"]
	if !ok {
		t.Fatal("TSLA missing from rescued quotes")
	}
	if !tsla.Stale || tsla.Warning != StaleWarning {
		t.Errorf("stale/warning = %v/%q", tsla.Stale, tsla.Warning)
	}
}

func TestBatchKeyDeterministic(t *testing.T) {
	a := batchKey("crypto:prices:", []string{"eth", "BTC"})
	b := batchKey("crypto:prices:", []string{"BTC", "ETH"})
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}
	if a != "crypto:prices:BTC,ETH" {
		t.Errorf("key = %q", a)
	}
}

func TestHistoryTTL(t *testing.T) {
	if got := historyTTL(1); got != shortHistoryTTL {
		t.Errorf("historyTTL(1) = %v", got)
	}
	if got := historyTTL(30); got != longHistoryTTL {
		t.Errorf("historyTTL(30) = %v", got)
	}
}

// fakeBetStore is an in-memory BetStore.
type fakeBetStore struct {
	bets map[string]domain.Bet
}

func newFakeBetStore() *fakeBetStore {
	return &fakeBetStore{bets: make(map[string]domain.Bet)}
}

func (f *fakeBetStore) Create(_ context.Context, bet domain.Bet) error {
	if _, ok := f.bets[bet.ID]; ok {
		return domain.ErrAlreadyExists
	}
	f.bets[bet.ID] = bet
	return nil
}

func (f *fakeBetStore) Update(_ context.Context, bet domain.Bet) error {
	if _, ok := f.bets[bet.ID]; !ok {
		return domain.ErrNotFound
	}
	f.bets[bet.ID] = bet
	return nil
}

func (f *fakeBetStore) Delete(_ context.Context, id string) error {
	if _, ok := f.bets[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.bets, id)
	return nil
}

func (f *fakeBetStore) GetByID(_ context.Context, id string) (domain.Bet, error) {
	bet, ok := f.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return bet, nil
}

func (f *fakeBetStore) GetByConditionID(_ context.Context, conditionID string) (domain.Bet, error) {
	for _, bet := range f.bets {
		if bet.ConditionID == conditionID {
			return bet, nil
		}
	}
	return domain.Bet{}, domain.ErrNotFound
}

func (f *fakeBetStore) List(_ context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, bet := range f.bets {
		if opts.Type != "" && bet.Type != opts.Type {
			continue
		}
		if opts.Resolved != nil && bet.Resolved != *opts.Resolved {
			continue
		}
		out = append(out, bet)
	}
	if opts.Offset >= len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeBetStore) Count(ctx context.Context, opts domain.ListOpts) (int64, error) {
	opts.Limit = 0
	opts.Offset = 0
	bets, err := f.List(ctx, opts)
	return int64(len(bets)), err
}

func (f *fakeBetStore) ListUnresolved(ctx context.Context) ([]domain.Bet, error) {
	resolved := false
	return f.List(ctx, domain.ListOpts{Resolved: &resolved})
}

func (f *fakeBetStore) UpdateSnapshot(_ context.Context, id string, currentValue, pnl float64) error {
	bet, ok := f.bets[id]
	if !ok {
		return domain.ErrNotFound
	}
	bet.CurrentValue = &currentValue
	bet.PnL = &pnl
	bet.UpdatedAt = time.Now()
	f.bets[id] = bet
	return nil
}

func (f *fakeBetStore) MarkResolved(_ context.Context, id string, outcome domain.BetOutcome) error {
	bet, ok := f.bets[id]
	if !ok || bet.Resolved {
		return domain.ErrNotFound
	}
	bet.Resolved = true
	bet.Outcome = &outcome
	f.bets[id] = bet
	return nil
}

func (f *fakeBetStore) ListResolvedBefore(_ context.Context, cutoff time.Time, limit, offset int) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, bet := range f.bets {
		if bet.Resolved && bet.ResolveDate.Before(cutoff) {
			out = append(out, bet)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ domain.BetStore = (*fakeBetStore)(nil)
