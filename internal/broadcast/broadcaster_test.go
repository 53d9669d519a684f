package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/service"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(nopWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memBus records published payloads per channel.
type memBus struct {
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{
		published: make(map[string][][]byte),
		streamed:  make(map[string][][]byte),
	}
}

func (m *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	m.published[channel] = append(m.published[channel], payload)
	return nil
}

func (m *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (m *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	m.streamed[stream] = append(m.streamed[stream], payload)
	return nil
}

func (m *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

var _ domain.SignalBus = (*memBus)(nil)

// memCache is always-miss on Get so every tick hits the source, with
// stale values retained for rescue.
type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache { return &memCache{entries: make(map[string][]byte)} }

func (m *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memCache) Get(context.Context, string, any) (bool, error) { return false, nil }

func (m *memCache) GetStale(_ context.Context, key string, dest any) (bool, error) {
	raw, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memCache) GetOrFetch(ctx context.Context, key string, dest any, ttl time.Duration, fetch domain.FetchFunc) (bool, error) {
	value, err := fetch(ctx)
	if err != nil {
		return false, err
	}
	if err := m.Set(ctx, key, value, ttl); err != nil {
		return false, err
	}
	raw := m.entries[key]
	return false, json.Unmarshal(raw, dest)
}

func (m *memCache) Invalidate(_ context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

func (m *memCache) InvalidatePrefix(_ context.Context, prefix string) (int, error) {
	n := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			n++
		}
	}
	return n, nil
}

var _ domain.KVCache = (*memCache)(nil)

// memStore is a minimal in-memory bet store.
type memStore struct {
	bets map[string]domain.Bet
}

func newMemStore() *memStore { return &memStore{bets: make(map[string]domain.Bet)} }

func (m *memStore) Create(_ context.Context, bet domain.Bet) error {
	m.bets[bet.ID] = bet
	return nil
}

func (m *memStore) Update(_ context.Context, bet domain.Bet) error {
	m.bets[bet.ID] = bet
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	delete(m.bets, id)
	return nil
}

func (m *memStore) GetByID(_ context.Context, id string) (domain.Bet, error) {
	bet, ok := m.bets[id]
	if !ok {
		return domain.Bet{}, domain.ErrNotFound
	}
	return bet, nil
}

func (m *memStore) GetByConditionID(_ context.Context, conditionID string) (domain.Bet, error) {
	for _, bet := range m.bets {
		if bet.ConditionID == conditionID {
			return bet, nil
		}
	}
	return domain.Bet{}, domain.ErrNotFound
}

func (m *memStore) List(_ context.Context, _ domain.ListOpts) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, bet := range m.bets {
		out = append(out, bet)
	}
	return out, nil
}

func (m *memStore) Count(_ context.Context, _ domain.ListOpts) (int64, error) {
	return int64(len(m.bets)), nil
}

func (m *memStore) ListUnresolved(_ context.Context) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, bet := range m.bets {
		if !bet.Resolved {
			out = append(out, bet)
		}
	}
	return out, nil
}

func (m *memStore) UpdateSnapshot(_ context.Context, id string, currentValue, pnl float64) error {
	bet, ok := m.bets[id]
	if !ok {
		return domain.ErrNotFound
	}
	bet.CurrentValue = &currentValue
	bet.PnL = &pnl
	m.bets[id] = bet
	return nil
}

func (m *memStore) MarkResolved(_ context.Context, id string, outcome domain.BetOutcome) error {
	bet, ok := m.bets[id]
	if !ok {
		return domain.ErrNotFound
	}
	bet.Resolved = true
	bet.Outcome = &outcome
	m.bets[id] = bet
	return nil
}

func (m *memStore) ListResolvedBefore(context.Context, time.Time, int, int) ([]domain.Bet, error) {
	return nil, nil
}

var _ domain.BetStore = (*memStore)(nil)

// pinnedSource serves a settable price for a fixed symbol set.
type pinnedSource struct {
	symbols []string
	price   float64
}

func (p *pinnedSource) Name() string { return "pinned" }

func (p *pinnedSource) Supports(symbol string) bool {
	for _, s := range p.symbols {
		if s == strings.ToUpper(symbol) {
			return true
		}
	}
	return false
}

func (p *pinnedSource) Symbols() []string { return p.symbols }

func (p *pinnedSource) Price(_ context.Context, symbol string) (domain.PriceReading, error) {
	return domain.PriceReading{Symbol: strings.ToUpper(symbol), Price: p.price, Source: "pinned"}, nil
}

func (p *pinnedSource) Prices(ctx context.Context, symbols []string) (map[string]domain.PriceReading, error) {
	out := make(map[string]domain.PriceReading, len(symbols))
	for _, sym := range symbols {
		r, _ := p.Price(ctx, sym)
		out[strings.ToUpper(sym)] = r
	}
	return out, nil
}

func (p *pinnedSource) History(_ context.Context, symbol string, days int) (domain.PriceHistory, error) {
	return domain.PriceHistory{Symbol: strings.ToUpper(symbol), Days: days}, nil
}

var _ domain.PriceSource = (*pinnedSource)(nil)

type recordedAlert struct {
	event string
	title string
}

type memNotifier struct {
	alerts []recordedAlert
}

func (m *memNotifier) Notify(_ context.Context, event, title, _ string) error {
	m.alerts = append(m.alerts, recordedAlert{event: event, title: title})
	return nil
}

func newTestBroadcaster(store domain.BetStore, src *pinnedSource, bus domain.SignalBus, notifier service.Notifier) *Broadcaster {
	logger := testLogger()
	crypto := service.NewCryptoService([]domain.PriceSource{src}, newMemCache(), nil, logger, time.Minute)
	stocks := service.NewStockService(nil, newMemCache(), nil, logger, time.Minute, time.Hour)
	weather := service.NewWeatherService(nil, newMemCache(), nil, logger, 5*time.Minute)
	bets := service.NewBetService(store, crypto, stocks, weather, nil, logger)
	return New(bets, crypto, stocks, weather, bus, notifier, time.Minute, logger)
}

func seedBet(t *testing.T, store domain.BetStore) domain.Bet {
	t.Helper()
	bet := domain.Bet{
		ID:        "bet-1",
		Market:    "Bitcoin above $100k",
		Type:      domain.BetTypeCrypto,
		Position:  domain.PositionYes,
		Asset:     "BTC",
		Threshold: 100_000,
		Amount:    100,
		Shares:    200,
		EntryOdds: 0.5,
	}
	if err := store.Create(context.Background(), bet); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return bet
}

func TestTickPublishesPriceAndBetUpdates(t *testing.T) {
	store := newMemStore()
	seedBet(t, store)
	bus := newMemBus()
	src := &pinnedSource{symbols: []string{"BTC"}, price: 110_000}

	b := newTestBroadcaster(store, src, bus, nil)
	b.Tick(context.Background())

	if len(bus.published[ChannelPrices]) != 1 {
		t.Fatalf("prices channel got %d messages", len(bus.published[ChannelPrices]))
	}
	var evt Event
	if err := json.Unmarshal(bus.published[ChannelPrices][0], &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Event != "price-update" {
		t.Errorf("event = %q", evt.Event)
	}

	if len(bus.published[PriceChannel("BTC")]) != 1 {
		t.Errorf("per-symbol channel got %d messages", len(bus.published[PriceChannel("BTC")]))
	}
	if len(bus.published[BetChannel("bet-1")]) != 1 {
		t.Errorf("bet channel got %d messages", len(bus.published[BetChannel("bet-1")]))
	}
	if len(bus.streamed[StreamBets]) != 1 {
		t.Errorf("bet stream got %d entries", len(bus.streamed[StreamBets]))
	}
}

func TestBetUpdateDistanceIsPercentNumber(t *testing.T) {
	store := newMemStore()
	seedBet(t, store)
	bus := newMemBus()
	src := &pinnedSource{symbols: []string{"BTC"}, price: 110_000}

	b := newTestBroadcaster(store, src, bus, nil)
	b.Tick(context.Background())

	if len(bus.published[BetChannel("bet-1")]) != 1 {
		t.Fatalf("bet channel got %d messages", len(bus.published[BetChannel("bet-1")]))
	}
	var evt Event
	if err := json.Unmarshal(bus.published[BetChannel("bet-1")][0], &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	data, ok := evt.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %T", evt.Data)
	}
	distance, ok := data["distance"].(float64)
	if !ok {
		t.Fatalf("distance = %T, want a plain number", data["distance"])
	}
	// 110k over a 100k threshold puts the yes position 10 percent ahead.
	if distance != 10 {
		t.Errorf("distance = %v, want 10", distance)
	}
}

func TestTickPersistsSnapshot(t *testing.T) {
	store := newMemStore()
	seedBet(t, store)
	src := &pinnedSource{symbols: []string{"BTC"}, price: 110_000}

	b := newTestBroadcaster(store, src, newMemBus(), nil)
	b.Tick(context.Background())

	bet, err := store.GetByID(context.Background(), "bet-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if bet.CurrentValue == nil || *bet.CurrentValue != 0.5 {
		t.Errorf("currentValue = %v, want entry odds carried forward", bet.CurrentValue)
	}
	if bet.PnL == nil || *bet.PnL != 0 {
		t.Errorf("pnl = %v", bet.PnL)
	}
}

func TestTickNotifiesOnFlip(t *testing.T) {
	store := newMemStore()
	seedBet(t, store)
	src := &pinnedSource{symbols: []string{"BTC"}, price: 110_000}
	notifier := &memNotifier{}

	b := newTestBroadcaster(store, src, newMemBus(), notifier)
	ctx := context.Background()

	b.Tick(ctx) // winning, no alert yet
	if len(notifier.alerts) != 0 {
		t.Fatalf("unexpected alerts: %+v", notifier.alerts)
	}

	src.price = 95_000
	b.Tick(ctx) // flipped to losing
	if len(notifier.alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(notifier.alerts))
	}
	if notifier.alerts[0].event != "bet_flip" || notifier.alerts[0].title != "Bet now losing" {
		t.Errorf("alert = %+v", notifier.alerts[0])
	}

	b.Tick(ctx) // still losing, no new alert
	if len(notifier.alerts) != 1 {
		t.Errorf("got %d alerts after steady tick", len(notifier.alerts))
	}
}

func TestTickEmptyBookPublishesNothing(t *testing.T) {
	bus := newMemBus()
	b := newTestBroadcaster(newMemStore(), &pinnedSource{}, bus, nil)

	b.Tick(context.Background())
	if len(bus.published) != 0 || len(bus.streamed) != 0 {
		t.Errorf("published = %v, streamed = %v", bus.published, bus.streamed)
	}
}
