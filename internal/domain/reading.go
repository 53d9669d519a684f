package domain

import "time"

// MarketSession is the current US equity trading session.
type MarketSession string

const (
	SessionPreMarket  MarketSession = "pre-market"
	SessionOpen       MarketSession = "open"
	SessionAfterHours MarketSession = "after-hours"
	SessionClosed     MarketSession = "closed"
)

// PriceReading is a live crypto price observation.
type PriceReading struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change24h"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetchedAt"`
	Stale     bool      `json:"stale,omitempty"`
	Warning   string    `json:"warning,omitempty"`
}

// StockQuote is a live equity quote observation.
type StockQuote struct {
	Symbol        string        `json:"symbol"`
	Price         float64       `json:"price"`
	Change        float64       `json:"change"`
	ChangePercent float64       `json:"changePercent"`
	MarketStatus  MarketSession `json:"marketStatus"`
	Source        string        `json:"source"`
	FetchedAt     time.Time     `json:"fetchedAt"`
	Stale         bool          `json:"stale,omitempty"`
	Warning       string        `json:"warning,omitempty"`
}

// WeatherReading is a current-conditions observation for a city.
// Temperature is Fahrenheit, wind speed mph.
type WeatherReading struct {
	City        string    `json:"city"`
	Temperature float64   `json:"temperature"`
	Condition   string    `json:"condition"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetchedAt"`
	Stale       bool      `json:"stale,omitempty"`
	Warning     string    `json:"warning,omitempty"`
}

// ForecastPoint is one step of a weather forecast.
type ForecastPoint struct {
	Time        time.Time `json:"time"`
	Temperature float64   `json:"temperature"`
	Condition   string    `json:"condition"`
}

// Forecast is an hourly forecast for a city.
type Forecast struct {
	City      string          `json:"city"`
	Points    []ForecastPoint `json:"points"`
	Source    string          `json:"source"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Stale     bool            `json:"stale,omitempty"`
	Warning   string          `json:"warning,omitempty"`
}

// PricePoint is a single historical observation.
type PricePoint struct {
	Time  time.Time `json:"time"`
	Price float64   `json:"price"`
}

// PriceHistory is a historical price series for an asset.
type PriceHistory struct {
	Symbol    string       `json:"symbol"`
	Days      int          `json:"days"`
	Points    []PricePoint `json:"points"`
	Source    string       `json:"source"`
	FetchedAt time.Time    `json:"fetchedAt"`
	Stale     bool         `json:"stale,omitempty"`
	Warning   string       `json:"warning,omitempty"`
}

// APIUsage is the advisory call counter for one upstream endpoint.
type APIUsage struct {
	Service    string `json:"service"`
	Endpoint   string `json:"endpoint"`
	CallsToday int64  `json:"callsToday"`
	DailyLimit int64  `json:"dailyLimit,omitempty"`
}
