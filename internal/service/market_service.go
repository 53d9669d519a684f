package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/platform/polymarket"
)

// Market metadata moves slowly; a minute of caching keeps repeated
// searches off the Gamma API.
const marketCacheTTL = time.Minute

// MarketAPI is the slice of the Gamma client the market service needs.
type MarketAPI interface {
	SearchMarkets(ctx context.Context, query string) ([]domain.PredictionMarket, error)
	GetMarket(ctx context.Context, id string) (domain.PredictionMarket, error)
	GetMarketBySlug(ctx context.Context, slug string) (domain.PredictionMarket, error)
}

// MarketService looks up Polymarket markets for linking bets, caching
// results briefly.
type MarketService struct {
	gamma  MarketAPI
	cache  domain.KVCache
	logger *slog.Logger
}

// NewMarketService creates a MarketService.
func NewMarketService(gamma MarketAPI, cache domain.KVCache, logger *slog.Logger) *MarketService {
	return &MarketService{
		gamma:  gamma,
		cache:  cache,
		logger: logger,
	}
}

// Search returns markets matching a free-text query.
func (s *MarketService) Search(ctx context.Context, query string) ([]domain.PredictionMarket, error) {
	if query == "" {
		return nil, fmt.Errorf("markets: query is required: %w", domain.ErrValidation)
	}

	key := "polymarket:search:" + query
	var markets []domain.PredictionMarket
	_, err := s.cache.GetOrFetch(ctx, key, &markets, marketCacheTTL, func(ctx context.Context) (any, error) {
		return s.gamma.SearchMarkets(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("markets: search %q: %w", query, err)
	}
	return markets, nil
}

// Get returns one market by its Gamma ID.
func (s *MarketService) Get(ctx context.Context, id string) (domain.PredictionMarket, error) {
	key := "polymarket:market:" + id
	var market domain.PredictionMarket
	_, err := s.cache.GetOrFetch(ctx, key, &market, marketCacheTTL, func(ctx context.Context) (any, error) {
		return s.gamma.GetMarket(ctx, id)
	})
	if err != nil {
		return domain.PredictionMarket{}, fmt.Errorf("markets: get %s: %w", id, err)
	}
	return market, nil
}

// FromURL resolves a Polymarket URL to its market.
func (s *MarketService) FromURL(ctx context.Context, rawURL string) (domain.PredictionMarket, error) {
	slug, err := polymarket.ExtractSlugFromURL(rawURL)
	if err != nil {
		return domain.PredictionMarket{}, fmt.Errorf("markets: from url: %w", err)
	}

	key := "polymarket:slug:" + slug
	var market domain.PredictionMarket
	_, err = s.cache.GetOrFetch(ctx, key, &market, marketCacheTTL, func(ctx context.Context) (any, error) {
		return s.gamma.GetMarketBySlug(ctx, slug)
	})
	if err != nil {
		return domain.PredictionMarket{}, fmt.Errorf("markets: slug %s: %w", slug, err)
	}
	return market, nil
}
