package domain

import "context"

// PriceSource is a single upstream capable of serving crypto prices.
// Sources never cache and never fall back internally; ordering and
// degradation are the aggregator's concern.
type PriceSource interface {
	Name() string
	Price(ctx context.Context, symbol string) (PriceReading, error)
	Prices(ctx context.Context, symbols []string) (map[string]PriceReading, error)
	History(ctx context.Context, symbol string, days int) (PriceHistory, error)
	Supports(symbol string) bool
	Symbols() []string
}

// QuoteSource is a single upstream capable of serving equity quotes.
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, symbol string) (StockQuote, error)
	Quotes(ctx context.Context, symbols []string) (map[string]StockQuote, error)
	History(ctx context.Context, symbol string, days int) (PriceHistory, error)
}

// WeatherSource is a single upstream capable of serving weather readings.
type WeatherSource interface {
	Name() string
	Current(ctx context.Context, city string) (WeatherReading, error)
	Forecast(ctx context.Context, city string, hours int) (Forecast, error)
	Supports(city string) bool
	Cities() []string
}
