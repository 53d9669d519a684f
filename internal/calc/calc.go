// Package calc holds the pure bet math. Nothing here touches the
// network, cache or clock except where a timestamp is passed in.
package calc

import "github.com/polytrack/polytrack/internal/domain"

// Status labels for an unresolved bet.
const (
	StatusWinning = "winning"
	StatusLosing  = "losing"
)

// Distance reports how far the current reading is from the threshold,
// signed so that positive means the position is ahead. The percent is
// relative to the threshold and zero when the threshold is zero.
func Distance(current, threshold float64, position domain.BetPosition) domain.Distance {
	value := current - threshold
	if position == domain.PositionNo {
		value = threshold - current
	}

	percent := 0.0
	if threshold != 0 {
		percent = value / threshold * 100
	}

	return domain.Distance{Value: value, Percent: percent}
}

// IsWinning reports whether the position is currently ahead. A reading
// exactly at the threshold counts as losing for both sides.
func IsWinning(current, threshold float64, position domain.BetPosition) bool {
	if position == domain.PositionNo {
		return current < threshold
	}
	return current > threshold
}

// DetermineStatus returns the winning/losing label for a position.
func DetermineStatus(current, threshold float64, position domain.BetPosition) string {
	if IsWinning(current, threshold, position) {
		return StatusWinning
	}
	return StatusLosing
}

// PnL computes the live profit-and-loss view of a position. Shares pay
// out one dollar each on a win, so the potential payout equals the
// share count.
func PnL(shares, currentOdds, invested float64) domain.PnLBreakdown {
	currentValue := shares * currentOdds
	unrealized := currentValue - invested

	roi := 0.0
	if invested > 0 {
		roi = unrealized / invested * 100
	}

	return domain.PnLBreakdown{
		Invested:        invested,
		CurrentValue:    currentValue,
		UnrealizedPnL:   unrealized,
		PotentialPayout: shares,
		ROI:             roi,
	}
}

// Status assembles the full live view of a bet from the current asset
// reading and the current market odds for the held position.
func Status(bet domain.Bet, current, currentOdds float64) domain.BetStatus {
	return domain.BetStatus{
		BetID:        bet.ID,
		Asset:        bet.Asset,
		CurrentValue: current,
		Threshold:    bet.Threshold,
		Position:     bet.Position,
		Distance:     Distance(current, bet.Threshold, bet.Position),
		IsWinning:    IsWinning(current, bet.Threshold, bet.Position),
		Status:       DetermineStatus(current, bet.Threshold, bet.Position),
		PnL:          PnL(bet.Shares, currentOdds, bet.Amount),
	}
}
