package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/platform/openmeteo"
)

// Forecasts cover hours, not minutes, so they live several times
// longer than current conditions.
const forecastTTLFactor = 6

// WeatherService aggregates city weather over an ordered source chain
// behind a read-through cache.
type WeatherService struct {
	sources []domain.WeatherSource
	cache   domain.KVCache
	usage   domain.UsageTracker
	logger  *slog.Logger
	ttl     time.Duration
}

// NewWeatherService creates a WeatherService. Sources are tried in the
// given order.
func NewWeatherService(
	sources []domain.WeatherSource,
	cache domain.KVCache,
	usage domain.UsageTracker,
	logger *slog.Logger,
	ttl time.Duration,
) *WeatherService {
	return &WeatherService{
		sources: sources,
		cache:   cache,
		usage:   usage,
		logger:  logger,
		ttl:     ttl,
	}
}

// Supported reports whether any source covers the city.
func (s *WeatherService) Supported(city string) bool {
	for _, src := range s.sources {
		if src.Supports(city) {
			return true
		}
	}
	return false
}

// Cities returns the union of covered cities across all sources, sorted.
func (s *WeatherService) Cities() []string {
	seen := make(map[string]bool)
	for _, src := range s.sources {
		for _, city := range src.Cities() {
			seen[city] = true
		}
	}
	cities := make([]string, 0, len(seen))
	for city := range seen {
		cities = append(cities, city)
	}
	sort.Strings(cities)
	return cities
}

// Current returns the live conditions for a city.
func (s *WeatherService) Current(ctx context.Context, city string) (domain.WeatherReading, error) {
	name := openmeteo.NormalizeCity(city)
	if !s.Supported(name) {
		return domain.WeatherReading{}, fmt.Errorf("weather: current %s: %w", name, domain.ErrUnsupportedAsset)
	}

	key := "weather:current:" + name
	var reading domain.WeatherReading
	_, err := s.cache.GetOrFetch(ctx, key, &reading, s.ttl, func(ctx context.Context) (any, error) {
		return s.fetchCurrent(ctx, name)
	})
	if err == nil {
		return reading, nil
	}

	if ok, serr := s.cache.GetStale(ctx, key, &reading); serr == nil && ok {
		s.logger.WarnContext(ctx, "weather: serving stale reading",
			slog.String("city", name),
			slog.String("error", err.Error()),
		)
		reading.Stale = true
		reading.Warning = StaleWarning
		return reading, nil
	}
	return domain.WeatherReading{}, fmt.Errorf("weather: current %s: %v: %w", name, err, domain.ErrNoData)
}

// Forecast returns an hourly forecast for a city covering the given
// number of hours.
func (s *WeatherService) Forecast(ctx context.Context, city string, hours int) (domain.Forecast, error) {
	name := openmeteo.NormalizeCity(city)
	if hours <= 0 {
		hours = 24
	}
	if !s.Supported(name) {
		return domain.Forecast{}, fmt.Errorf("weather: forecast %s: %w", name, domain.ErrUnsupportedAsset)
	}

	key := fmt.Sprintf("weather:forecast:%s:%d", name, hours)
	var forecast domain.Forecast
	_, err := s.cache.GetOrFetch(ctx, key, &forecast, s.ttl*forecastTTLFactor, func(ctx context.Context) (any, error) {
		return s.fetchForecast(ctx, name, hours)
	})
	if err == nil {
		return forecast, nil
	}

	if ok, serr := s.cache.GetStale(ctx, key, &forecast); serr == nil && ok {
		s.logger.WarnContext(ctx, "weather: serving stale forecast",
			slog.String("city", name),
			slog.String("error", err.Error()),
		)
		forecast.Stale = true
		forecast.Warning = StaleWarning
		return forecast, nil
	}
	return domain.Forecast{}, fmt.Errorf("weather: forecast %s: %v: %w", name, err, domain.ErrNoData)
}

func (s *WeatherService) fetchCurrent(ctx context.Context, city string) (domain.WeatherReading, error) {
	var lastErr error
	for _, src := range s.sources {
		if !src.Supports(city) {
			continue
		}
		recordUsage(ctx, s.usage, s.logger, src.Name(), "current")
		reading, err := src.Current(ctx, city)
		if err != nil {
			s.logger.WarnContext(ctx, "weather: source failed",
				slog.String("source", src.Name()),
				slog.String("city", city),
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
	return domain.WeatherReading{}, lastErr
}

func (s *WeatherService) fetchForecast(ctx context.Context, city string, hours int) (domain.Forecast, error) {
	var lastErr error
	for _, src := range s.sources {
		if !src.Supports(city) {
			continue
		}
		recordUsage(ctx, s.usage, s.logger, src.Name(), "forecast")
		forecast, err := src.Forecast(ctx, city, hours)
		if err != nil {
			s.logger.WarnContext(ctx, "weather: forecast source failed",
				slog.String("source", src.Name()),
				slog.String("city", city),
				slog.String("error", err.Error()),
			)
			lastErr = err
			continue
		}
		return forecast, nil
	}
	if lastErr == nil {
		lastErr = domain.ErrUnsupportedAsset
	}
	return domain.Forecast{}, lastErr
}
