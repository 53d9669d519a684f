package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/calc"
	"github.com/polytrack/polytrack/internal/domain"
)

// StockService aggregates equity quotes over an ordered source chain
// behind a read-through cache. Quotes live much longer outside market
// hours since nothing moves.
type StockService struct {
	sources   []domain.QuoteSource
	cache     domain.KVCache
	usage     domain.UsageTracker
	logger    *slog.Logger
	openTTL   time.Duration
	closedTTL time.Duration
}

// NewStockService creates a StockService. Sources are tried in the
// given order.
func NewStockService(
	sources []domain.QuoteSource,
	cache domain.KVCache,
	usage domain.UsageTracker,
	logger *slog.Logger,
	openTTL, closedTTL time.Duration,
) *StockService {
	return &StockService{
		sources:   sources,
		cache:     cache,
		usage:     usage,
		logger:    logger,
		openTTL:   openTTL,
		closedTTL: closedTTL,
	}
}

// MarketStatus returns the current US equity session.
func (s *StockService) MarketStatus() domain.MarketSession {
	return calc.MarketStatusAt(time.Now())
}

func (s *StockService) quoteTTL() time.Duration {
	if calc.IsMarketHours() {
		return s.openTTL
	}
	return s.closedTTL
}

// Quote returns the current quote for one symbol.
func (s *StockService) Quote(ctx context.Context, symbol string) (domain.StockQuote, error) {
	sym := strings.ToUpper(symbol)

	key := "stock:quote:" + sym
	var quote domain.StockQuote
	_, err := s.cache.GetOrFetch(ctx, key, &quote, s.quoteTTL(), func(ctx context.Context) (any, error) {
		return s.fetchQuote(ctx, sym)
	})
	if err == nil {
		return quote, nil
	}

	if ok, serr := s.cache.GetStale(ctx, key, &quote); serr == nil && ok {
		s.logger.WarnContext(ctx, "stocks: serving stale quote",
			slog.String("symbol", sym),
			slog.String("error", err.Error()),
		)
		quote.Stale = true
		quote.Warning = StaleWarning
		return quote, nil
	}
	return domain.StockQuote{}, fmt.Errorf("stocks: quote %s: %v: %w", sym, err, domain.ErrNoData)
}

// Quotes returns current quotes for several symbols in one call.
// Symbols no source could serve are omitted from the result.
func (s *StockService) Quotes(ctx context.Context, symbols []string) (map[string]domain.StockQuote, error) {
	if len(symbols) == 0 {
		return map[string]domain.StockQuote{}, nil
	}

	key := batchKey("stock:quotes:", symbols)
	var quotes map[string]domain.StockQuote
	_, err := s.cache.GetOrFetch(ctx, key, &quotes, s.quoteTTL(), func(ctx context.Context) (any, error) {
		return s.fetchQuotes(ctx, symbols)
	})
	if err == nil {
		return quotes, nil
	}

	if ok, serr := s.cache.GetStale(ctx, key, &quotes); serr == nil && ok {
		s.logger.WarnContext(ctx, "stocks: serving stale quotes", slog.String("error", err.Error()))
		for sym, q := range quotes {
			q.Stale = true
			q.Warning = StaleWarning
			quotes[sym] = q
		}
		return quotes, nil
	}

	// The batch key misses when this symbol set was never requested
	// together. Assemble a best-effort result from per-symbol entries.
	rescued := make(map[string]domain.StockQuote)
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		var q domain.StockQuote
		if ok, serr := s.cache.GetStale(ctx, "stock:quote:"+sym, &q); serr == nil && ok {
			q.Stale = true
			q.Warning = StaleWarning
			rescued[sym] = q
		}
	}
	if len(rescued) > 0 {
		s.logger.WarnContext(ctx, "stocks: serving stale per-symbol quotes",
			slog.Int("rescued", len(rescued)),
			slog.String("error", err.Error()),
		)
		return rescued, nil
	}
	return nil, fmt.Errorf("stocks: quotes: %v: %w", err, domain.ErrNoData)
}

// History returns a historical close series for one symbol.
func (s *StockService) History(ctx context.Context, symbol string, days int) (domain.PriceHistory, error) {
	sym := strings.ToUpper(symbol)
	if days <= 0 {
		days = 7
	}

	key := fmt.Sprintf("stock:history:%s:%d", sym, days)
	var history domain.PriceHistory
	_, err := s.cache.GetOrFetch(ctx, key, &history, historyTTL(days), func(ctx context.Context) (any, error) {
		return s.fetchHistory(ctx, sym, days)
	})
	if err == nil {
		return history, nil
	}

	if ok, serr := s.cache.GetStale(ctx, key, &history); serr == nil && ok {
		s.logger.WarnContext(ctx, "stocks: serving stale history",
			slog.String("symbol", sym),
			slog.String("error", err.Error()),
		)
		history.Stale = true
		history.Warning = StaleWarning
		return history, nil
	}
	return domain.PriceHistory{}, fmt.Errorf("stocks: history %s: %v: %w", sym, err, domain.ErrNoData)
}

func (s *StockService) fetchQuote(ctx context.Context, sym string) (domain.StockQuote, error) {
	var lastErr error
	for _, src := range s.sources {
		recordUsage(ctx, s.usage, s.logger, src.Name(), "quote")
		quote, err := src.Quote(ctx, sym)
		if err != nil {
			s.logger.WarnContext(ctx, "stocks: source failed",
				slog.String("source", src.Name()),
				slog.String("symbol", sym),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue
		}
		return quote, nil
	}
	if lastErr == nil {
		lastErr = domain.ErrNoData
	}
	return domain.StockQuote{}, lastErr
}

func (s *StockService) fetchQuotes(ctx context.Context, symbols []string) (map[string]domain.StockQuote, error) {
	upper := make([]string, len(symbols))
	for i, sym := range symbols {
		upper[i] = strings.ToUpper(sym)
	}

	var lastErr error
	for _, src := range s.sources {
		recordUsage(ctx, s.usage, s.logger, src.Name(), "quotes")
		quotes, err := src.Quotes(ctx, upper)
		if err != nil {
			s.logger.WarnContext(ctx, "stocks: batch source failed",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue
		}
		if len(quotes) > 0 {
			return quotes, nil
		}
	}
	if lastErr == nil {
		lastErr = domain.ErrNoData
	}
	return nil, lastErr
}

func (s *StockService) fetchHistory(ctx context.Context, sym string, days int) (domain.PriceHistory, error) {
	var lastErr error
	for _, src := range s.sources {
		recordUsage(ctx, s.usage, s.logger, src.Name(), "history")
		history, err := src.History(ctx, sym, days)
		if err != nil {
			s.logger.WarnContext(ctx, "stocks: history source failed",
				slog.String("source", src.Name()),
				slog.String("symbol", sym),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue
		}
		return history, nil
	}
	if lastErr == nil {
		lastErr = domain.ErrNoData
	}
	return domain.PriceHistory{}, lastErr
}
