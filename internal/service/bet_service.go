package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/polytrack/polytrack/internal/calc"
	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/parser"
)

// CreateBetInput is the payload for creating a bet. When Asset or
// Threshold are missing they are parsed from the market text.
type CreateBetInput struct {
	Market        string             `json:"market"`
	Type          domain.BetType     `json:"type,omitempty"`
	Position      domain.BetPosition `json:"position,omitempty"`
	Amount        float64            `json:"amount"`
	Shares        float64            `json:"shares"`
	EntryOdds     float64            `json:"entryOdds"`
	Asset         string             `json:"asset,omitempty"`
	Threshold     float64            `json:"threshold,omitempty"`
	ThresholdUnit string             `json:"thresholdUnit,omitempty"`
	ResolveDate   time.Time          `json:"resolveDate"`
	Category      string             `json:"category,omitempty"`
	ConditionID   string             `json:"conditionId,omitempty"`
	Slug          string             `json:"slug,omitempty"`
	EventSlug     string             `json:"eventSlug,omitempty"`
}

// UpdateBetInput carries optional field updates for an existing bet.
type UpdateBetInput struct {
	Market      *string             `json:"market,omitempty"`
	Position    *domain.BetPosition `json:"position,omitempty"`
	Amount      *float64            `json:"amount,omitempty"`
	Shares      *float64            `json:"shares,omitempty"`
	EntryOdds   *float64            `json:"entryOdds,omitempty"`
	Threshold   *float64            `json:"threshold,omitempty"`
	ResolveDate *time.Time          `json:"resolveDate,omitempty"`
	Category    *string             `json:"category,omitempty"`
}

// BetService owns the bet lifecycle: creation with market-text parsing,
// updates, live status computation, and resolution.
type BetService struct {
	store    domain.BetStore
	crypto   *CryptoService
	stocks   *StockService
	weather  *WeatherService
	notifier Notifier
	logger   *slog.Logger
}

// NewBetService creates a BetService. The notifier may be nil.
func NewBetService(
	store domain.BetStore,
	crypto *CryptoService,
	stocks *StockService,
	weather *WeatherService,
	notifier Notifier,
	logger *slog.Logger,
) *BetService {
	return &BetService{
		store:    store,
		crypto:   crypto,
		stocks:   stocks,
		weather:  weather,
		notifier: notifier,
		logger:   logger,
	}
}

// Create validates the input, fills gaps by parsing the market text,
// and persists a new bet.
func (s *BetService) Create(ctx context.Context, input CreateBetInput) (domain.Bet, error) {
	if strings.TrimSpace(input.Market) == "" {
		return domain.Bet{}, fmt.Errorf("bets: market text is required: %w", domain.ErrValidation)
	}
	if input.Amount < 0 || input.Shares < 0 {
		return domain.Bet{}, fmt.Errorf("bets: amount and shares must be non-negative: %w", domain.ErrValidation)
	}
	if input.EntryOdds < 0 || input.EntryOdds > 1 {
		return domain.Bet{}, fmt.Errorf("bets: entry odds must be within [0,1]: %w", domain.ErrValidation)
	}

	now := time.Now()
	bet := domain.Bet{
		ID:            uuid.NewString(),
		Market:        input.Market,
		Type:          input.Type,
		Position:      input.Position,
		Amount:        input.Amount,
		Shares:        input.Shares,
		EntryOdds:     input.EntryOdds,
		Asset:         strings.ToUpper(input.Asset),
		Threshold:     input.Threshold,
		ThresholdUnit: input.ThresholdUnit,
		ResolveDate:   input.ResolveDate,
		Category:      input.Category,
		DataSource:    "manual",
		ConditionID:   input.ConditionID,
		Slug:          input.Slug,
		EventSlug:     input.EventSlug,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Fill missing structure from the market question text.
	if bet.Type == "" || bet.Asset == "" || bet.Threshold == 0 {
		parsed, err := parser.Parse(input.Market, now)
		if err == nil {
			if bet.Type == "" {
				bet.Type = parsed.Type
			}
			if bet.Asset == "" {
				bet.Asset = parsed.Asset
			}
			if bet.Threshold == 0 {
				bet.Threshold = parsed.Threshold
			}
			if bet.ThresholdUnit == "" {
				bet.ThresholdUnit = parsed.ThresholdUnit
			}
			if bet.Position == "" {
				bet.Position = parsed.Position
			}
			if bet.ResolveDate.IsZero() {
				bet.ResolveDate = parsed.ResolveDate
			}
		} else {
			s.logger.DebugContext(ctx, "bets: market text not parseable",
				slog.String("market", input.Market),
			)
		}
	}

	if bet.Type == "" {
		bet.Type = domain.BetTypeOther
	}
	if bet.Position == "" {
		bet.Position = domain.PositionYes
	}
	if bet.Position != domain.PositionYes && bet.Position != domain.PositionNo {
		return domain.Bet{}, fmt.Errorf("bets: position must be YES or NO: %w", domain.ErrValidation)
	}
	if bet.ThresholdUnit == "" {
		bet.ThresholdUnit = "USD"
	}
	if bet.ResolveDate.IsZero() {
		bet.ResolveDate = now.AddDate(0, 1, 0)
	}

	if err := s.store.Create(ctx, bet); err != nil {
		return domain.Bet{}, fmt.Errorf("bets: create: %w", err)
	}
	s.logger.InfoContext(ctx, "bets: created",
		slog.String("id", bet.ID),
		slog.String("type", string(bet.Type)),
		slog.String("asset", bet.Asset),
	)
	return bet, nil
}

// Get returns one bet by ID.
func (s *BetService) Get(ctx context.Context, id string) (domain.Bet, error) {
	bet, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bets: get %s: %w", id, err)
	}
	return bet, nil
}

// List returns bets matching the options plus the total match count.
func (s *BetService) List(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, int64, error) {
	if opts.Limit <= 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	bets, err := s.store.List(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("bets: list: %w", err)
	}
	total, err := s.store.Count(ctx, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("bets: count: %w", err)
	}
	return bets, total, nil
}

// Update applies partial changes to an existing unresolved bet.
func (s *BetService) Update(ctx context.Context, id string, input UpdateBetInput) (domain.Bet, error) {
	bet, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bets: update %s: %w", id, err)
	}
	if bet.Resolved {
		return domain.Bet{}, fmt.Errorf("bets: bet %s is resolved: %w", id, domain.ErrValidation)
	}

	if input.Market != nil {
		bet.Market = *input.Market
	}
	if input.Position != nil {
		if *input.Position != domain.PositionYes && *input.Position != domain.PositionNo {
			return domain.Bet{}, fmt.Errorf("bets: position must be YES or NO: %w", domain.ErrValidation)
		}
		bet.Position = *input.Position
	}
	if input.Amount != nil {
		bet.Amount = *input.Amount
	}
	if input.Shares != nil {
		bet.Shares = *input.Shares
	}
	if input.EntryOdds != nil {
		bet.EntryOdds = *input.EntryOdds
	}
	if input.Threshold != nil {
		bet.Threshold = *input.Threshold
	}
	if input.ResolveDate != nil {
		bet.ResolveDate = *input.ResolveDate
	}
	if input.Category != nil {
		bet.Category = *input.Category
	}
	bet.UpdatedAt = time.Now()

	if err := s.store.Update(ctx, bet); err != nil {
		return domain.Bet{}, fmt.Errorf("bets: update %s: %w", id, err)
	}
	return bet, nil
}

// Delete removes a bet.
func (s *BetService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("bets: delete %s: %w", id, err)
	}
	return nil
}

// Resolve marks a bet as settled with the given outcome.
func (s *BetService) Resolve(ctx context.Context, id string, outcome domain.BetOutcome) (domain.Bet, error) {
	if outcome != domain.OutcomeWon && outcome != domain.OutcomeLost {
		return domain.Bet{}, fmt.Errorf("bets: outcome must be won or lost: %w", domain.ErrValidation)
	}
	if err := s.store.MarkResolved(ctx, id, outcome); err != nil {
		return domain.Bet{}, fmt.Errorf("bets: resolve %s: %w", id, err)
	}
	bet, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Bet{}, fmt.Errorf("bets: resolve %s: %w", id, err)
	}
	s.logger.InfoContext(ctx, "bets: resolved",
		slog.String("id", id),
		slog.String("outcome", string(outcome)),
	)
	if s.notifier != nil {
		msg := fmt.Sprintf("%s settled %s", bet.Market, outcome)
		if err := s.notifier.Notify(ctx, "bet_resolved", "Bet resolved", msg); err != nil {
			s.logger.WarnContext(ctx, "bets: resolve notification failed",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return bet, nil
}

// Status computes the live view of one bet against current data.
func (s *BetService) Status(ctx context.Context, id string) (domain.BetStatus, error) {
	bet, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.BetStatus{}, fmt.Errorf("bets: status %s: %w", id, err)
	}
	return s.statusFor(ctx, bet)
}

// StatusOf computes the live view of an already-loaded bet.
func (s *BetService) StatusOf(ctx context.Context, bet domain.Bet) (domain.BetStatus, error) {
	return s.statusFor(ctx, bet)
}

// Statuses computes the live view of every unresolved bet. Bets whose
// data cannot be fetched are skipped with a warning.
func (s *BetService) Statuses(ctx context.Context) ([]domain.BetStatus, error) {
	bets, err := s.store.ListUnresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("bets: statuses: %w", err)
	}

	statuses := make([]domain.BetStatus, 0, len(bets))
	for _, bet := range bets {
		status, err := s.statusFor(ctx, bet)
		if err != nil {
			s.logger.WarnContext(ctx, "bets: status skipped",
				slog.String("id", bet.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Unresolved returns the open bets.
func (s *BetService) Unresolved(ctx context.Context) ([]domain.Bet, error) {
	bets, err := s.store.ListUnresolved(ctx)
	if err != nil {
		return nil, fmt.Errorf("bets: unresolved: %w", err)
	}
	return bets, nil
}

// SaveSnapshot persists the latest computed mark for a bet.
func (s *BetService) SaveSnapshot(ctx context.Context, id string, currentValue, pnl float64) error {
	if err := s.store.UpdateSnapshot(ctx, id, currentValue, pnl); err != nil {
		return fmt.Errorf("bets: snapshot %s: %w", id, err)
	}
	return nil
}

func (s *BetService) statusFor(ctx context.Context, bet domain.Bet) (domain.BetStatus, error) {
	current, stale, warning, err := s.currentReading(ctx, bet)
	if err != nil {
		return domain.BetStatus{}, err
	}

	// The live share price is only known for wallet-synced bets, where
	// the sync stores it as the current value. Entry odds stand in
	// otherwise.
	odds := bet.EntryOdds
	if bet.CurrentValue != nil {
		odds = *bet.CurrentValue
	}

	status := calc.Status(bet, current, odds)
	status.Stale = stale
	status.Warning = warning
	return status, nil
}

func (s *BetService) currentReading(ctx context.Context, bet domain.Bet) (float64, bool, string, error) {
	switch bet.Type {
	case domain.BetTypeCrypto:
		reading, err := s.crypto.Price(ctx, bet.Asset)
		if err != nil {
			return 0, false, "", err
		}
		return reading.Price, reading.Stale, reading.Warning, nil
	case domain.BetTypeStock:
		quote, err := s.stocks.Quote(ctx, bet.Asset)
		if err != nil {
			return 0, false, "", err
		}
		return quote.Price, quote.Stale, quote.Warning, nil
	case domain.BetTypeWeather:
		reading, err := s.weather.Current(ctx, bet.Asset)
		if err != nil {
			return 0, false, "", err
		}
		return reading.Temperature, reading.Stale, reading.Warning, nil
	default:
		return 0, false, "", fmt.Errorf("bets: no live data for type %s: %w", bet.Type, domain.ErrUnsupportedAsset)
	}
}
