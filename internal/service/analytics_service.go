package service

import (
	"context"
	"fmt"

	"github.com/polytrack/polytrack/internal/domain"
)

// PortfolioSummary aggregates the whole book.
type PortfolioSummary struct {
	TotalBets       int     `json:"totalBets"`
	OpenBets        int     `json:"openBets"`
	ResolvedBets    int     `json:"resolvedBets"`
	TotalInvested   float64 `json:"totalInvested"`
	CurrentValue    float64 `json:"currentValue"`
	UnrealizedPnL   float64 `json:"unrealizedPnL"`
	PotentialPayout float64 `json:"potentialPayout"`
}

// PerformanceSummary covers resolved bets only.
type PerformanceSummary struct {
	Resolved    int     `json:"resolved"`
	Won         int     `json:"won"`
	Lost        int     `json:"lost"`
	WinRate     float64 `json:"winRate"` // percent
	RealizedPnL float64 `json:"realizedPnL"`
}

// TypeBreakdown aggregates one bet type.
type TypeBreakdown struct {
	Type     domain.BetType `json:"type"`
	Count    int            `json:"count"`
	Invested float64        `json:"invested"`
	PnL      float64        `json:"pnl"`
}

// AnalyticsService derives portfolio, performance, and usage reports
// from the bet store and the API usage counters.
type AnalyticsService struct {
	store domain.BetStore
	usage domain.UsageTracker
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(store domain.BetStore, usage domain.UsageTracker) *AnalyticsService {
	return &AnalyticsService{store: store, usage: usage}
}

const analyticsPageSize = 500

func (s *AnalyticsService) allBets(ctx context.Context) ([]domain.Bet, error) {
	var all []domain.Bet
	for offset := 0; ; offset += analyticsPageSize {
		page, err := s.store.List(ctx, domain.ListOpts{Limit: analyticsPageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < analyticsPageSize {
			return all, nil
		}
	}
}

// Portfolio summarizes the whole book. Open bets without a computed
// mark count at their invested value.
func (s *AnalyticsService) Portfolio(ctx context.Context) (PortfolioSummary, error) {
	bets, err := s.allBets(ctx)
	if err != nil {
		return PortfolioSummary{}, fmt.Errorf("analytics: portfolio: %w", err)
	}

	summary := PortfolioSummary{TotalBets: len(bets)}
	for _, bet := range bets {
		if bet.Resolved {
			summary.ResolvedBets++
			continue
		}
		summary.OpenBets++
		summary.TotalInvested += bet.Amount
		summary.PotentialPayout += bet.Shares

		value := bet.Amount
		if bet.CurrentValue != nil {
			value = bet.Shares * *bet.CurrentValue
		}
		summary.CurrentValue += value
	}
	summary.UnrealizedPnL = summary.CurrentValue - summary.TotalInvested
	return summary, nil
}

// Performance summarizes resolved bets. A won bet realizes one dollar
// per share less the stake; a lost bet realizes the lost stake.
func (s *AnalyticsService) Performance(ctx context.Context) (PerformanceSummary, error) {
	resolved := true
	var all []domain.Bet
	for offset := 0; ; offset += analyticsPageSize {
		page, err := s.store.List(ctx, domain.ListOpts{
			Limit:    analyticsPageSize,
			Offset:   offset,
			Resolved: &resolved,
		})
		if err != nil {
			return PerformanceSummary{}, fmt.Errorf("analytics: performance: %w", err)
		}
		all = append(all, page...)
		if len(page) < analyticsPageSize {
			break
		}
	}

	summary := PerformanceSummary{Resolved: len(all)}
	for _, bet := range all {
		if bet.Outcome == nil {
			continue
		}
		switch *bet.Outcome {
		case domain.OutcomeWon:
			summary.Won++
			summary.RealizedPnL += bet.Shares - bet.Amount
		case domain.OutcomeLost:
			summary.Lost++
			summary.RealizedPnL -= bet.Amount
		}
	}
	if summary.Resolved > 0 {
		summary.WinRate = float64(summary.Won) / float64(summary.Resolved) * 100
	}
	return summary, nil
}

// ByType breaks the book down per bet type, ordered by the canonical
// type list.
func (s *AnalyticsService) ByType(ctx context.Context) ([]TypeBreakdown, error) {
	bets, err := s.allBets(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: by type: %w", err)
	}

	byType := make(map[domain.BetType]*TypeBreakdown)
	for _, bet := range bets {
		entry, ok := byType[bet.Type]
		if !ok {
			entry = &TypeBreakdown{Type: bet.Type}
			byType[bet.Type] = entry
		}
		entry.Count++
		entry.Invested += bet.Amount
		if bet.PnL != nil {
			entry.PnL += *bet.PnL
		}
	}

	order := []domain.BetType{
		domain.BetTypeCrypto,
		domain.BetTypeStock,
		domain.BetTypeWeather,
		domain.BetTypeSports,
		domain.BetTypeOther,
	}
	breakdowns := make([]TypeBreakdown, 0, len(byType))
	for _, t := range order {
		if entry, ok := byType[t]; ok {
			breakdowns = append(breakdowns, *entry)
		}
	}
	return breakdowns, nil
}

// APIUsage reports the advisory call counters per upstream endpoint.
func (s *AnalyticsService) APIUsage(ctx context.Context) ([]domain.APIUsage, error) {
	if s.usage == nil {
		return []domain.APIUsage{}, nil
	}
	usage, err := s.usage.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics: api usage: %w", err)
	}
	return usage, nil
}
