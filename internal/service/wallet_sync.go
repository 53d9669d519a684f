package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/parser"
)

// Position snapshots move with the market but a wallet rarely needs
// syncing more often than every few minutes.
const positionsCacheTTL = 5 * time.Minute

// PositionAPI is the slice of the data API client wallet sync needs.
type PositionAPI interface {
	Positions(ctx context.Context, wallet string) ([]domain.WalletPosition, error)
}

// SyncResult summarizes one wallet sync run.
type SyncResult struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Total    int `json:"total"`
}

// WalletSyncService imports Polymarket positions held by a wallet into
// the bet store. Positions already linked by condition ID get their
// mark refreshed; new ones become bets.
type WalletSyncService struct {
	store  domain.BetStore
	data   PositionAPI
	cache  domain.KVCache
	logger *slog.Logger
}

// NewWalletSyncService creates a WalletSyncService.
func NewWalletSyncService(
	store domain.BetStore,
	data PositionAPI,
	cache domain.KVCache,
	logger *slog.Logger,
) *WalletSyncService {
	return &WalletSyncService{
		store:  store,
		data:   data,
		cache:  cache,
		logger: logger,
	}
}

// Sync pulls the wallet's positions and upserts them as bets.
func (s *WalletSyncService) Sync(ctx context.Context, wallet string) (SyncResult, error) {
	if !common.IsHexAddress(wallet) {
		return SyncResult{}, fmt.Errorf("wallet: %q is not a valid address: %w", wallet, domain.ErrValidation)
	}
	wallet = common.HexToAddress(wallet).Hex()

	positions, err := s.fetchPositions(ctx, wallet)
	if err != nil {
		return SyncResult{}, fmt.Errorf("wallet: sync %s: %w", wallet, err)
	}

	result := SyncResult{Total: len(positions)}
	for _, pos := range positions {
		if pos.ConditionID == "" {
			continue
		}

		existing, err := s.store.GetByConditionID(ctx, pos.ConditionID)
		switch {
		case err == nil:
			if err := s.store.UpdateSnapshot(ctx, existing.ID, pos.CurrentPrice, pos.CashPnL); err != nil {
				s.logger.WarnContext(ctx, "wallet: snapshot update failed",
					slog.String("bet_id", existing.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			result.Updated++
		case errors.Is(err, domain.ErrNotFound):
			bet := s.betFromPosition(pos)
			if err := s.store.Create(ctx, bet); err != nil {
				s.logger.WarnContext(ctx, "wallet: import failed",
					slog.String("condition_id", pos.ConditionID),
					slog.String("error", err.Error()),
				)
				continue
			}
			result.Imported++
		default:
			return result, fmt.Errorf("wallet: lookup %s: %w", pos.ConditionID, err)
		}
	}

	s.logger.InfoContext(ctx, "wallet: sync complete",
		slog.String("wallet", wallet),
		slog.Int("imported", result.Imported),
		slog.Int("updated", result.Updated),
		slog.Int("total", result.Total),
	)
	return result, nil
}

func (s *WalletSyncService) fetchPositions(ctx context.Context, wallet string) ([]domain.WalletPosition, error) {
	key := "polymarket:positions:" + strings.ToLower(wallet)
	var positions []domain.WalletPosition
	_, err := s.cache.GetOrFetch(ctx, key, &positions, positionsCacheTTL, func(ctx context.Context) (any, error) {
		return s.data.Positions(ctx, wallet)
	})
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// betFromPosition maps an imported position to a bet. The market
// question is parsed for asset and threshold; when that fails, the
// share price itself becomes the tracked value with no threshold.
func (s *WalletSyncService) betFromPosition(pos domain.WalletPosition) domain.Bet {
	now := time.Now()
	curPrice := pos.CurrentPrice
	cashPnL := pos.CashPnL

	bet := domain.Bet{
		ID:           uuid.NewString(),
		Market:       pos.Title,
		Type:         domain.BetTypeOther,
		Position:     domain.PositionYes,
		Amount:       pos.InitialValue,
		Shares:       pos.Size,
		EntryOdds:    pos.AvgPrice,
		CurrentValue: &curPrice,
		PnL:          &cashPnL,
		ResolveDate:  pos.EndDate,
		Category:     "Polymarket",
		DataSource:   "polymarket",
		ConditionID:  pos.ConditionID,
		Slug:         pos.Slug,
		EventSlug:    pos.EventSlug,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if strings.EqualFold(pos.Outcome, "No") {
		bet.Position = domain.PositionNo
	}
	if bet.ResolveDate.IsZero() {
		bet.ResolveDate = now.AddDate(0, 1, 0)
	}

	if parsed, err := parser.Parse(pos.Title, now); err == nil {
		bet.Type = parsed.Type
		bet.Asset = parsed.Asset
		bet.Threshold = parsed.Threshold
		bet.ThresholdUnit = parsed.ThresholdUnit
	}
	return bet
}
