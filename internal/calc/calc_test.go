package calc

import (
	"math"
	"testing"

	"github.com/polytrack/polytrack/internal/domain"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name        string
		current     float64
		threshold   float64
		position    domain.BetPosition
		wantValue   float64
		wantPercent float64
	}{
		{"yes above", 110_000, 100_000, domain.PositionYes, 10_000, 10},
		{"yes below", 95_000, 100_000, domain.PositionYes, -5_000, -5},
		{"no below", 95_000, 100_000, domain.PositionNo, 5_000, 5},
		{"no above", 110_000, 100_000, domain.PositionNo, -10_000, -10},
		{"zero threshold", 42, 0, domain.PositionYes, 42, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Distance(tt.current, tt.threshold, tt.position)
			if !almostEqual(got.Value, tt.wantValue) {
				t.Errorf("Value = %v, want %v", got.Value, tt.wantValue)
			}
			if !almostEqual(got.Percent, tt.wantPercent) {
				t.Errorf("Percent = %v, want %v", got.Percent, tt.wantPercent)
			}
		})
	}
}

func TestIsWinning(t *testing.T) {
	tests := []struct {
		name      string
		current   float64
		threshold float64
		position  domain.BetPosition
		want      bool
	}{
		{"yes above wins", 101, 100, domain.PositionYes, true},
		{"yes below loses", 99, 100, domain.PositionYes, false},
		{"yes at threshold loses", 100, 100, domain.PositionYes, false},
		{"no below wins", 99, 100, domain.PositionNo, true},
		{"no above loses", 101, 100, domain.PositionNo, false},
		{"no at threshold loses", 100, 100, domain.PositionNo, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWinning(tt.current, tt.threshold, tt.position); got != tt.want {
				t.Errorf("IsWinning = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetermineStatus(t *testing.T) {
	if got := DetermineStatus(101, 100, domain.PositionYes); got != StatusWinning {
		t.Errorf("status = %q, want %q", got, StatusWinning)
	}
	if got := DetermineStatus(100, 100, domain.PositionNo); got != StatusLosing {
		t.Errorf("status = %q, want %q", got, StatusLosing)
	}
}

func TestPnL(t *testing.T) {
	tests := []struct {
		name        string
		shares      float64
		currentOdds float64
		invested    float64
		want        domain.PnLBreakdown
	}{
		{
			name: "profitable", shares: 200, currentOdds: 0.75, invested: 100,
			want: domain.PnLBreakdown{
				Invested: 100, CurrentValue: 150, UnrealizedPnL: 50,
				PotentialPayout: 200, ROI: 50,
			},
		},
		{
			name: "underwater", shares: 200, currentOdds: 0.25, invested: 100,
			want: domain.PnLBreakdown{
				Invested: 100, CurrentValue: 50, UnrealizedPnL: -50,
				PotentialPayout: 200, ROI: -50,
			},
		},
		{
			name: "zero invested no roi", shares: 10, currentOdds: 0.5, invested: 0,
			want: domain.PnLBreakdown{
				Invested: 0, CurrentValue: 5, UnrealizedPnL: 5,
				PotentialPayout: 10, ROI: 0,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PnL(tt.shares, tt.currentOdds, tt.invested)
			if !almostEqual(got.Invested, tt.want.Invested) ||
				!almostEqual(got.CurrentValue, tt.want.CurrentValue) ||
				!almostEqual(got.UnrealizedPnL, tt.want.UnrealizedPnL) ||
				!almostEqual(got.PotentialPayout, tt.want.PotentialPayout) ||
				!almostEqual(got.ROI, tt.want.ROI) {
				t.Errorf("PnL = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	bet := domain.Bet{
		ID:        "bet-1",
		Asset:     "BTC",
		Position:  domain.PositionYes,
		Amount:    100,
		Shares:    200,
		Threshold: 100_000,
	}

	got := Status(bet, 110_000, 0.75)

	if got.BetID != "bet-1" || got.Asset != "BTC" {
		t.Fatalf("identity fields = %q/%q", got.BetID, got.Asset)
	}
	if !got.IsWinning || got.Status != StatusWinning {
		t.Errorf("expected winning, got %+v", got)
	}
	if !almostEqual(got.Distance.Value, 10_000) || !almostEqual(got.Distance.Percent, 10) {
		t.Errorf("distance = %+v", got.Distance)
	}
	if !almostEqual(got.PnL.UnrealizedPnL, 50) {
		t.Errorf("pnl = %+v", got.PnL)
	}
}
