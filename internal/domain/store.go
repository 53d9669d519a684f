package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit    int
	Offset   int
	Type     BetType // zero value means all types
	Resolved *bool   // nil means both
}

// BetStore persists bets.
type BetStore interface {
	Create(ctx context.Context, bet Bet) error
	Update(ctx context.Context, bet Bet) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (Bet, error)
	GetByConditionID(ctx context.Context, conditionID string) (Bet, error)
	List(ctx context.Context, opts ListOpts) ([]Bet, error)
	Count(ctx context.Context, opts ListOpts) (int64, error)
	ListUnresolved(ctx context.Context) ([]Bet, error)
	// UpdateSnapshot stores the latest computed mark for a bet.
	UpdateSnapshot(ctx context.Context, id string, currentValue, pnl float64) error
	MarkResolved(ctx context.Context, id string, outcome BetOutcome) error
	// ListResolvedBefore returns resolved bets whose resolve date is
	// older than cutoff, oldest first, for archival. Offset pages
	// through result sets larger than one batch.
	ListResolvedBefore(ctx context.Context, cutoff time.Time, limit, offset int) ([]Bet, error)
}
