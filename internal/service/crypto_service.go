package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// CryptoService aggregates crypto prices over an ordered source chain
// behind a read-through cache. When every source fails it rescues the
// last known value from the cache, flagged as stale.
type CryptoService struct {
	sources []domain.PriceSource
	cache   domain.KVCache
	usage   domain.UsageTracker
	logger  *slog.Logger
	ttl     time.Duration
}

// NewCryptoService creates a CryptoService. Sources are tried in the
// given order.
func NewCryptoService(
	sources []domain.PriceSource,
	cache domain.KVCache,
	usage domain.UsageTracker,
	logger *slog.Logger,
	ttl time.Duration,
) *CryptoService {
	return &CryptoService{
		sources: sources,
		cache:   cache,
		usage:   usage,
		logger:  logger,
		ttl:     ttl,
	}
}

// Supported reports whether any source knows the symbol.
func (s *CryptoService) Supported(symbol string) bool {
	for _, src := range s.sources {
		if src.Supports(symbol) {
			return true
		}
	}
	return false
}

// Symbols returns the union of symbols across all sources, sorted.
func (s *CryptoService) Symbols() []string {
	seen := make(map[string]bool)
	for _, src := range s.sources {
		for _, sym := range src.Symbols() {
			seen[sym] = true
		}
	}
	symbols := make([]string, 0, len(seen))
	for sym := range seen {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// Price returns the current price for one symbol.
func (s *CryptoService) Price(ctx context.Context, symbol string) (domain.PriceReading, error) {
	sym := strings.ToUpper(symbol)
	if !s.Supported(sym) {
		return domain.PriceReading{}, fmt.Errorf("crypto: price %s: %w", sym, domain.ErrUnsupportedAsset)
	}

	key := "crypto:price:" + sym
	var reading domain.PriceReading
	_, err := s.cache.GetOrFetch(ctx, key, &reading, s.ttl, func(ctx context.Context) (any, error) {
		return s.fetchPrice(ctx, sym)
	})
	if err == nil {
		return reading, nil
	}

	if ok, serr := s.cache.GetStale(ctx, key, &reading); serr == nil && ok {
		s.logger.WarnContext(ctx, "crypto: serving stale price",
			slog.String("symbol", sym),
			slog.String("error", err.Error()),
		)
		reading.Stale = true
		reading.Warning = StaleWarning
		return reading, nil
	}
	return domain.PriceReading{}, fmt.Errorf("crypto: price %s: %v: %w", sym, err, domain.ErrNoData)
}

// Prices returns current prices for several symbols in one call.
// Symbols no source supports are omitted from the result.
func (s *CryptoService) Prices(ctx context.Context, symbols []string) (map[string]domain.PriceReading, error) {
	if len(symbols) == 0 {
		return map[string]domain.PriceReading{}, nil
	}

	key := batchKey("crypto:prices:", symbols)
	var readings map[string]domain.PriceReading
	_, err := s.cache.GetOrFetch(ctx, key, &readings, s.ttl, func(ctx context.Context) (any, error) {
		return s.fetchPrices(ctx, symbols)
	})
	if err == nil {
		return readings, nil
	}

	if ok, serr := s.cache.GetStale(ctx, key, &readings); serr == nil && ok {
		s.logger.WarnContext(ctx, "crypto: serving stale prices", slog.String("error", err.Error()))
		for sym, r := range readings {
			r.Stale = true
			r.Warning = StaleWarning
			readings[sym] = r
		}
		return readings, nil
	}

	// The batch key misses when this symbol set was never requested
	// together. Assemble a best-effort result from per-symbol entries.
	rescued := make(map[string]domain.PriceReading)
	for _, sym := range symbols {
		sym = strings.ToUpper(sym)
		var r domain.PriceReading
		if ok, serr := s.cache.GetStale(ctx, "crypto:price:"+sym, &r); serr == nil && ok {
			r.Stale = true
			r.Warning = StaleWarning
			rescued[sym] = r
		}
	}
	if len(rescued) > 0 {
		s.logger.WarnContext(ctx, "crypto: serving stale per-symbol prices",
			slog.Int("rescued", len(rescued)),
			slog.String("error", err.Error()),
		)
		return rescued, nil
	}
	return nil, fmt.Errorf("crypto: prices: %v: %w", err, domain.ErrNoData)
}

// History returns a historical price series for one symbol.
func (s *CryptoService) History(ctx context.Context, symbol string, days int) (domain.PriceHistory, error) {
	sym := strings.ToUpper(symbol)
	if days <= 0 {
		days = 7
	}
	if !s.Supported(sym) {
		return domain.PriceHistory{}, fmt.Errorf("crypto: history %s: %w", sym, domain.ErrUnsupportedAsset)
	}

	key := fmt.Sprintf("crypto:history:%s:%d", sym, days)
	var history domain.PriceHistory
	_, err := s.cache.GetOrFetch(ctx, key, &history, historyTTL(days), func(ctx context.Context) (any, error) {
		return s.fetchHistory(ctx, sym, days)
	})
	if err == nil {
		return history, nil
	}

	if ok, serr := s.cache.GetStale(ctx, key, &history); serr == nil && ok {
		s.logger.WarnContext(ctx, "crypto: serving stale history",
			slog.String("symbol", sym),
			slog.String("error", err.Error()),
		)
		history.Stale = true
		history.Warning = StaleWarning
		return history, nil
	}
	return domain.PriceHistory{}, fmt.Errorf("crypto: history %s: %v: %w", sym, err, domain.ErrNoData)
}

func (s *CryptoService) fetchPrice(ctx context.Context, sym string) (domain.PriceReading, error) {
	var lastErr error
	for _, src := range s.sources {
		if !src.Supports(sym) {
			continue
		}
		recordUsage(ctx, s.usage, s.logger, src.Name(), "price")
		reading, err := src.Price(ctx, sym)
		if err != nil {
			s.logger.WarnContext(ctx, "crypto: source failed",
				slog.String("source", src.Name()),
				slog.String("symbol", sym),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue
		}
		return reading, nil
	}
	if lastErr == nil {
		lastErr = domain.ErrUnsupportedAsset
	}
	return domain.PriceReading{}, lastErr
}

// fetchPrices walks the source chain, letting each source serve the
// symbols it supports that earlier sources could not.
func (s *CryptoService) fetchPrices(ctx context.Context, symbols []string) (map[string]domain.PriceReading, error) {
	remaining := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		remaining[strings.ToUpper(sym)] = true
	}

	readings := make(map[string]domain.PriceReading, len(symbols))
	var lastErr error
	for _, src := range s.sources {
		if len(remaining) == 0 {
			break
		}
		var batch []string
		for sym := range remaining {
			if src.Supports(sym) {
				batch = append(batch, sym)
			}
		}
		if len(batch) == 0 {
			continue
		}
		recordUsage(ctx, s.usage, s.logger, src.Name(), "prices")
		got, err := src.Prices(ctx, batch)
		if err != nil {
			s.logger.WarnContext(ctx, "crypto: batch source failed",
				slog.String("source", src.Name()),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue
		}
		for sym, reading := range got {
			readings[sym] = reading
			delete(remaining, sym)
		}
	}

	if len(readings) == 0 {
		if lastErr == nil {
			lastErr = domain.ErrUnsupportedAsset
		}
		return nil, lastErr
	}
	return readings, nil
}

func (s *CryptoService) fetchHistory(ctx context.Context, sym string, days int) (domain.PriceHistory, error) {
	var lastErr error
	for _, src := range s.sources {
		if !src.Supports(sym) {
			continue
		}
		recordUsage(ctx, s.usage, s.logger, src.Name(), "history")
		history, err := src.History(ctx, sym, days)
		if err != nil {
			s.logger.WarnContext(ctx, "crypto: history source failed",
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
		lastErr = domain.ErrUnsupportedAsset
	}
	return domain.PriceHistory{}, lastErr
}
