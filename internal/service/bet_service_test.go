package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

func newTestBetService(store domain.BetStore, priceSources ...domain.PriceSource) *BetService {
	logger := testLogger()
	crypto := NewCryptoService(priceSources, newFakeKV(), nil, logger, time.Minute)
	stocks := NewStockService(nil, newFakeKV(), nil, logger, time.Minute, time.Hour)
	weather := NewWeatherService(nil, newFakeKV(), nil, logger, 5*time.Minute)
	return NewBetService(store, crypto, stocks, weather, nil, logger)
}

func TestBetServiceCreateParsesMarketText(t *testing.T) {
	store := newFakeBetStore()
	svc := newTestBetService(store)

	bet, err := svc.Create(context.Background(), CreateBetInput{
		Market:    "Will Bitcoin hit $110k before Feb 1?",
		Amount:    100,
		Shares:    200,
		EntryOdds: 0.5,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if bet.ID == "" {
		t.Error("missing id")
	}
	if bet.Type != domain.BetTypeCrypto || bet.Asset != "BTC" {
		t.Errorf("type/asset = %s/%s", bet.Type, bet.Asset)
	}
	if bet.Threshold != 110_000 {
		t.Errorf("threshold = %v", bet.Threshold)
	}
	if bet.Position != domain.PositionYes {
		t.Errorf("position = %s", bet.Position)
	}
	if _, err := store.GetByID(context.Background(), bet.ID); err != nil {
		t.Errorf("bet not persisted: %v", err)
	}
}

func TestBetServiceCreateExplicitFieldsWin(t *testing.T) {
	svc := newTestBetService(newFakeBetStore())

	bet, err := svc.Create(context.Background(), CreateBetInput{
		Market:    "Will Bitcoin hit $110k before Feb 1?",
		Type:      domain.BetTypeCrypto,
		Asset:     "eth",
		Threshold: 5_000,
		Position:  domain.PositionNo,
		Amount:    50,
		Shares:    100,
		EntryOdds: 0.4,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if bet.Asset != "ETH" || bet.Threshold != 5_000 || bet.Position != domain.PositionNo {
		t.Errorf("bet = %+v", bet)
	}
}

func TestBetServiceCreateValidation(t *testing.T) {
	svc := newTestBetService(newFakeBetStore())

	tests := []struct {
		name  string
		input CreateBetInput
	}{
		{"empty market", CreateBetInput{Amount: 10}},
		{"negative amount", CreateBetInput{Market: "Bitcoin $100k", Amount: -1}},
		{"odds above one", CreateBetInput{Market: "Bitcoin $100k", EntryOdds: 1.5}},
		{"bad position", CreateBetInput{Market: "Bitcoin $100k", Position: "MAYBE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tt.input); !errors.Is(err, domain.ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestBetServiceUpdate(t *testing.T) {
	svc := newTestBetService(newFakeBetStore())
	ctx := context.Background()

	bet, err := svc.Create(ctx, CreateBetInput{Market: "Bitcoin above $100k", Amount: 10, Shares: 20})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	threshold := 120_000.0
	updated, err := svc.Update(ctx, bet.ID, UpdateBetInput{Threshold: &threshold})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Threshold != 120_000 {
		t.Errorf("threshold = %v", updated.Threshold)
	}

	if _, err := svc.Update(ctx, "missing", UpdateBetInput{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestBetServiceResolve(t *testing.T) {
	svc := newTestBetService(newFakeBetStore())
	ctx := context.Background()

	bet, err := svc.Create(ctx, CreateBetInput{Market: "Bitcoin above $100k", Amount: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resolved, err := svc.Resolve(ctx, bet.ID, domain.OutcomeWon)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resolved.Resolved || resolved.Outcome == nil || *resolved.Outcome != domain.OutcomeWon {
		t.Errorf("bet = %+v", resolved)
	}

	// Updating a resolved bet is rejected.
	if _, err := svc.Update(ctx, bet.ID, UpdateBetInput{}); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}

	if _, err := svc.Resolve(ctx, bet.ID, "draw"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation for bad outcome", err)
	}
}

func TestBetServiceStatus(t *testing.T) {
	store := newFakeBetStore()
	src := &fakePriceSource{name: "primary", symbols: []string{"BTC"}, price: 110_000}
	svc := newTestBetService(store, src)
	ctx := context.Background()

	bet, err := svc.Create(ctx, CreateBetInput{
		Market:    "Will Bitcoin hit $100k before Feb 1?",
		Amount:    100,
		Shares:    200,
		EntryOdds: 0.5,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	status, err := svc.Status(ctx, bet.ID)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.IsWinning || status.Status != "winning" {
		t.Errorf("status = %+v", status)
	}
	if status.CurrentValue != 110_000 {
		t.Errorf("currentValue = %v", status.CurrentValue)
	}
	if status.Distance.Value != 10_000 {
		t.Errorf("distance = %+v", status.Distance)
	}
	// No live odds known, so PnL falls back to entry odds.
	if status.PnL.CurrentValue != 100 {
		t.Errorf("pnl = %+v", status.PnL)
	}
}

func TestBetServiceStatusUnsupportedType(t *testing.T) {
	store := newFakeBetStore()
	svc := newTestBetService(store)
	ctx := context.Background()

	bet, err := svc.Create(ctx, CreateBetInput{Market: "Lakers win the finals, $50 says so", Amount: 50})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Status(ctx, bet.ID); !errors.Is(err, domain.ErrUnsupportedAsset) {
		t.Errorf("err = %v, want ErrUnsupportedAsset", err)
	}
}

func TestBetServiceStatusesSkipsFailures(t *testing.T) {
	store := newFakeBetStore()
	src := &fakePriceSource{name: "primary", symbols: []string{"BTC"}, price: 110_000}
	svc := newTestBetService(store, src)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateBetInput{Market: "Bitcoin above $100k", Amount: 10, Shares: 20}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Create(ctx, CreateBetInput{Market: "Lakers win it all for $10", Amount: 10}); err != nil {
		t.Fatalf("Create sports: %v", err)
	}

	statuses, err := svc.Statuses(ctx)
	if err != nil {
		t.Fatalf("Statuses: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("got %d statuses, want 1", len(statuses))
	}
	if statuses[0].Asset != "BTC" {
		t.Errorf("asset = %s", statuses[0].Asset)
	}
}
