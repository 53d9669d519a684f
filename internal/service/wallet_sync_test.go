package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

const testWallet = "0x56687bf447db6ffa42ffe2204a05edaa20f55839"

type fakePositionAPI struct {
	positions []domain.WalletPosition
	err       error
	calls     int
}

func (f *fakePositionAPI) Positions(_ context.Context, _ string) ([]domain.WalletPosition, error) {
	f.calls++
	return f.positions, f.err
}

func TestWalletSyncRejectsBadAddress(t *testing.T) {
	svc := NewWalletSyncService(newFakeBetStore(), &fakePositionAPI{}, newFakeKV(), testLogger())

	_, err := svc.Sync(context.Background(), "not-an-address")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestWalletSyncImportsNewPositions(t *testing.T) {
	store := newFakeBetStore()
	api := &fakePositionAPI{positions: []domain.WalletPosition{
		{
			ConditionID:  "0xcond1",
			Title:        "Will Bitcoin hit $110k before Feb 1?",
			Outcome:      "Yes",
			Size:         200,
			AvgPrice:     0.5,
			CurrentPrice: 0.62,
			InitialValue: 100,
			CashPnL:      24,
			Slug:         "bitcoin-110k",
			EventSlug:    "bitcoin-feb",
			EndDate:      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ConditionID: "0xcond2",
			Title:       "Something unparseable",
			Outcome:     "No",
			Size:        10,
			AvgPrice:    0.3,
		},
	}}
	svc := NewWalletSyncService(store, api, newFakeKV(), testLogger())

	result, err := svc.Sync(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Imported != 2 || result.Updated != 0 || result.Total != 2 {
		t.Fatalf("result = %+v", result)
	}

	bet, err := store.GetByConditionID(context.Background(), "0xcond1")
	if err != nil {
		t.Fatalf("imported bet missing: %v", err)
	}
	if bet.Type != domain.BetTypeCrypto || bet.Asset != "BTC" || bet.Threshold != 110_000 {
		t.Errorf("parsed fields = %s/%s/%v", bet.Type, bet.Asset, bet.Threshold)
	}
	if bet.DataSource != "polymarket" || bet.Category != "Polymarket" {
		t.Errorf("provenance = %s/%s", bet.DataSource, bet.Category)
	}
	if bet.CurrentValue == nil || *bet.CurrentValue != 0.62 {
		t.Errorf("currentValue = %v", bet.CurrentValue)
	}

	other, err := store.GetByConditionID(context.Background(), "0xcond2")
	if err != nil {
		t.Fatalf("second bet missing: %v", err)
	}
	if other.Type != domain.BetTypeOther || other.Position != domain.PositionNo {
		t.Errorf("fallback fields = %s/%s", other.Type, other.Position)
	}
}

func TestWalletSyncUpdatesExisting(t *testing.T) {
	store := newFakeBetStore()
	existing := domain.Bet{ID: "bet-1", Market: "linked", ConditionID: "0xcond1"}
	if err := store.Create(context.Background(), existing); err != nil {
		t.Fatalf("seed: %v", err)
	}

	api := &fakePositionAPI{positions: []domain.WalletPosition{
		{ConditionID: "0xcond1", Title: "linked", CurrentPrice: 0.8, CashPnL: 30},
	}}
	svc := NewWalletSyncService(store, api, newFakeKV(), testLogger())

	result, err := svc.Sync(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Imported != 0 || result.Updated != 1 {
		t.Fatalf("result = %+v", result)
	}

	bet, _ := store.GetByID(context.Background(), "bet-1")
	if bet.CurrentValue == nil || *bet.CurrentValue != 0.8 {
		t.Errorf("currentValue = %v", bet.CurrentValue)
	}
	if bet.PnL == nil || *bet.PnL != 30 {
		t.Errorf("pnl = %v", bet.PnL)
	}
}

func TestWalletSyncCachesPositions(t *testing.T) {
	api := &fakePositionAPI{}
	svc := NewWalletSyncService(newFakeBetStore(), api, newFakeKV(), testLogger())
	ctx := context.Background()

	if _, err := svc.Sync(ctx, testWallet); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	if _, err := svc.Sync(ctx, testWallet); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if api.calls != 1 {
		t.Errorf("api called %d times, want 1", api.calls)
	}
}
