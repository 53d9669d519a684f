package service

import (
	"context"
	"testing"

	"github.com/polytrack/polytrack/internal/domain"
)

func seedAnalyticsStore(t *testing.T) *fakeBetStore {
	t.Helper()
	store := newFakeBetStore()
	ctx := context.Background()

	mark := 0.8
	won := domain.OutcomeWon
	lost := domain.OutcomeLost

	bets := []domain.Bet{
		{ID: "open-1", Type: domain.BetTypeCrypto, Amount: 100, Shares: 200, CurrentValue: &mark},
		{ID: "open-2", Type: domain.BetTypeWeather, Amount: 50, Shares: 60},
		{ID: "won-1", Type: domain.BetTypeCrypto, Amount: 100, Shares: 150, Resolved: true, Outcome: &won},
		{ID: "lost-1", Type: domain.BetTypeStock, Amount: 40, Shares: 80, Resolved: true, Outcome: &lost},
	}
	for _, bet := range bets {
		if err := store.Create(ctx, bet); err != nil {
			t.Fatalf("seed %s: %v", bet.ID, err)
		}
	}
	return store
}

func TestAnalyticsPortfolio(t *testing.T) {
	svc := NewAnalyticsService(seedAnalyticsStore(t), nil)

	got, err := svc.Portfolio(context.Background())
	if err != nil {
		t.Fatalf("Portfolio: %v", err)
	}
	if got.TotalBets != 4 || got.OpenBets != 2 || got.ResolvedBets != 2 {
		t.Errorf("counts = %+v", got)
	}
	if got.TotalInvested != 150 {
		t.Errorf("invested = %v", got.TotalInvested)
	}
	// open-1 marks at 200*0.8, open-2 has no mark and counts at cost.
	if got.CurrentValue != 210 {
		t.Errorf("currentValue = %v", got.CurrentValue)
	}
	if got.UnrealizedPnL != 60 {
		t.Errorf("unrealizedPnL = %v", got.UnrealizedPnL)
	}
	if got.PotentialPayout != 260 {
		t.Errorf("potentialPayout = %v", got.PotentialPayout)
	}
}

func TestAnalyticsPerformance(t *testing.T) {
	svc := NewAnalyticsService(seedAnalyticsStore(t), nil)

	got, err := svc.Performance(context.Background())
	if err != nil {
		t.Fatalf("Performance: %v", err)
	}
	if got.Resolved != 2 || got.Won != 1 || got.Lost != 1 {
		t.Errorf("counts = %+v", got)
	}
	if got.WinRate != 50 {
		t.Errorf("winRate = %v", got.WinRate)
	}
	// won-1 realizes 150-100, lost-1 realizes -40.
	if got.RealizedPnL != 10 {
		t.Errorf("realizedPnL = %v", got.RealizedPnL)
	}
}

func TestAnalyticsByType(t *testing.T) {
	svc := NewAnalyticsService(seedAnalyticsStore(t), nil)

	got, err := svc.ByType(context.Background())
	if err != nil {
		t.Fatalf("ByType: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d types, want 3", len(got))
	}
	// Canonical type ordering.
	if got[0].Type != domain.BetTypeCrypto || got[1].Type != domain.BetTypeStock || got[2].Type != domain.BetTypeWeather {
		t.Errorf("order = %v/%v/%v", got[0].Type, got[1].Type, got[2].Type)
	}
	if got[0].Count != 2 || got[0].Invested != 200 {
		t.Errorf("crypto = %+v", got[0])
	}
}

type fakeUsageTracker struct {
	usage []domain.APIUsage
}

func (f *fakeUsageTracker) Record(_ context.Context, _, _ string) error { return nil }

func (f *fakeUsageTracker) Snapshot(_ context.Context) ([]domain.APIUsage, error) {
	return f.usage, nil
}

func TestAnalyticsAPIUsage(t *testing.T) {
	tracker := &fakeUsageTracker{usage: []domain.APIUsage{
		{Service: "coingecko", Endpoint: "price", CallsToday: 42},
	}}
	svc := NewAnalyticsService(newFakeBetStore(), tracker)

	got, err := svc.APIUsage(context.Background())
	if err != nil {
		t.Fatalf("APIUsage: %v", err)
	}
	if len(got) != 1 || got[0].CallsToday != 42 {
		t.Errorf("usage = %+v", got)
	}

	// Nil tracker degrades to an empty report.
	empty, err := NewAnalyticsService(newFakeBetStore(), nil).APIUsage(context.Background())
	if err != nil || len(empty) != 0 {
		t.Errorf("empty = %v, err = %v", empty, err)
	}
}
