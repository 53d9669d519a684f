package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polytrack/polytrack/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

const betSelectCols = `id, market, type, position, amount, shares, entry_odds,
	asset, threshold, threshold_unit, resolve_date, resolved, outcome,
	current_value, pnl, category, data_source,
	condition_id, slug, event_slug, created_at, updated_at`

func scanBet(row pgx.Row) (domain.Bet, error) {
	var b domain.Bet
	var betType, position string
	var outcome *string

	err := row.Scan(
		&b.ID, &b.Market, &betType, &position,
		&b.Amount, &b.Shares, &b.EntryOdds,
		&b.Asset, &b.Threshold, &b.ThresholdUnit,
		&b.ResolveDate, &b.Resolved, &outcome,
		&b.CurrentValue, &b.PnL,
		&b.Category, &b.DataSource,
		&b.ConditionID, &b.Slug, &b.EventSlug,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}
	b.Type = domain.BetType(betType)
	b.Position = domain.BetPosition(position)
	if outcome != nil {
		o := domain.BetOutcome(*outcome)
		b.Outcome = &o
	}
	return b, nil
}

func scanBets(rows pgx.Rows) ([]domain.Bet, error) {
	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

func outcomeArg(o *domain.BetOutcome) *string {
	if o == nil {
		return nil
	}
	s := string(*o)
	return &s
}

// Create inserts a new bet.
func (s *BetStore) Create(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (
			id, market, type, position, amount, shares, entry_odds,
			asset, threshold, threshold_unit, resolve_date, resolved, outcome,
			current_value, pnl, category, data_source,
			condition_id, slug, event_slug, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20, NOW(), NOW()
		)`

	_, err := s.pool.Exec(ctx, query,
		b.ID, b.Market, string(b.Type), string(b.Position),
		b.Amount, b.Shares, b.EntryOdds,
		b.Asset, b.Threshold, b.ThresholdUnit,
		b.ResolveDate, b.Resolved, outcomeArg(b.Outcome),
		b.CurrentValue, b.PnL, b.Category, b.DataSource,
		b.ConditionID, b.Slug, b.EventSlug,
	)
	if err != nil {
		return fmt.Errorf("postgres: create bet %s: %w", b.ID, err)
	}
	return nil
}

// Update replaces all mutable fields of a bet.
func (s *BetStore) Update(ctx context.Context, b domain.Bet) error {
	const query = `
		UPDATE bets SET
			market         = $2,
			type           = $3,
			position       = $4,
			amount         = $5,
			shares         = $6,
			entry_odds     = $7,
			asset          = $8,
			threshold      = $9,
			threshold_unit = $10,
			resolve_date   = $11,
			resolved       = $12,
			outcome        = $13,
			current_value  = $14,
			pnl            = $15,
			category       = $16,
			data_source    = $17,
			condition_id   = $18,
			slug           = $19,
			event_slug     = $20,
			updated_at     = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		b.ID, b.Market, string(b.Type), string(b.Position),
		b.Amount, b.Shares, b.EntryOdds,
		b.Asset, b.Threshold, b.ThresholdUnit,
		b.ResolveDate, b.Resolved, outcomeArg(b.Outcome),
		b.CurrentValue, b.PnL, b.Category, b.DataSource,
		b.ConditionID, b.Slug, b.EventSlug,
	)
	if err != nil {
		return fmt.Errorf("postgres: update bet %s: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a bet permanently.
func (s *BetStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM bets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete bet %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID retrieves a single bet by its ID.
func (s *BetStore) GetByID(ctx context.Context, id string) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE id = $1`, id)

	b, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %s: %w", id, err)
	}
	return b, nil
}

// GetByConditionID retrieves the bet linked to a Polymarket condition.
func (s *BetStore) GetByConditionID(ctx context.Context, conditionID string) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE condition_id = $1 AND condition_id <> ''`,
		conditionID)

	b, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet by condition %s: %w", conditionID, err)
	}
	return b, nil
}

func listFilters(opts domain.ListOpts) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	argIdx := 1

	if opts.Type != "" {
		where += fmt.Sprintf(" AND type = $%d", argIdx)
		args = append(args, string(opts.Type))
		argIdx++
	}
	if opts.Resolved != nil {
		where += fmt.Sprintf(" AND resolved = $%d", argIdx)
		args = append(args, *opts.Resolved)
		argIdx++
	}
	return where, args
}

// List returns bets with pagination and optional type/resolved filtering,
// newest first.
func (s *BetStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	where, args := listFilters(opts)
	query := `SELECT ` + betSelectCols + ` FROM bets` + where + " ORDER BY created_at DESC"
	argIdx := len(args) + 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets: %w", err)
	}
	defer rows.Close()

	bets, err := scanBets(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bets: %w", err)
	}
	return bets, nil
}

// Count returns the number of bets matching the filters in opts.
func (s *BetStore) Count(ctx context.Context, opts domain.ListOpts) (int64, error) {
	where, args := listFilters(opts)

	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bets`+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: count bets: %w", err)
	}
	return n, nil
}

// ListUnresolved returns every bet still awaiting resolution, oldest
// resolve date first.
func (s *BetStore) ListUnresolved(ctx context.Context) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betSelectCols+` FROM bets WHERE resolved = FALSE ORDER BY resolve_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unresolved bets: %w", err)
	}
	defer rows.Close()

	bets, err := scanBets(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan unresolved bets: %w", err)
	}
	return bets, nil
}

// UpdateSnapshot stores the latest computed mark for a bet.
func (s *BetStore) UpdateSnapshot(ctx context.Context, id string, currentValue, pnl float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bets SET current_value = $2, pnl = $3, updated_at = NOW() WHERE id = $1`,
		id, currentValue, pnl)
	if err != nil {
		return fmt.Errorf("postgres: update bet snapshot %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkResolved settles a bet with its final outcome.
func (s *BetStore) MarkResolved(ctx context.Context, id string, outcome domain.BetOutcome) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE bets SET resolved = TRUE, outcome = $2, updated_at = NOW()
		 WHERE id = $1 AND resolved = FALSE`,
		id, string(outcome))
	if err != nil {
		return fmt.Errorf("postgres: resolve bet %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListResolvedBefore returns resolved bets whose resolve date is older
// than cutoff, oldest first, for archival. Offset pages through result
// sets larger than one batch.
func (s *BetStore) ListResolvedBefore(ctx context.Context, cutoff time.Time, limit, offset int) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+betSelectCols+` FROM bets
		 WHERE resolved = TRUE AND resolve_date < $1
		 ORDER BY resolve_date ASC, id ASC LIMIT $2 OFFSET $3`,
		cutoff, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved bets: %w", err)
	}
	defer rows.Close()

	bets, err := scanBets(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan resolved bets: %w", err)
	}
	return bets, nil
}

// Compile-time interface check.
var _ domain.BetStore = (*BetStore)(nil)
