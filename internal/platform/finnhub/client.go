// Package finnhub implements an equity quote source backed by the
// Finnhub API. Finnhub requires an API key and only quotes one symbol
// per request, so it acts as the fallback behind Yahoo.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/calc"
	"github.com/polytrack/polytrack/internal/domain"
)

// DefaultBaseURL is the Finnhub v1 API root.
const DefaultBaseURL = "https://finnhub.io/api/v1"

// Client is the REST client for the Finnhub API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new Finnhub client. The API key is required; wiring
// skips this source entirely when no key is configured.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name identifies this source in cache entries and usage counters.
func (c *Client) Name() string { return "finnhub" }

// Quote returns the live quote for one symbol. Finnhub reports no
// session state, so the session is derived from the US market clock.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.StockQuote, error) {
	if c.apiKey == "" {
		return domain.StockQuote{}, fmt.Errorf("finnhub: quote %s: %w", symbol, domain.ErrNotConfigured)
	}

	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))

	body, err := c.doGet(ctx, "/quote", params)
	if err != nil {
		return domain.StockQuote{}, fmt.Errorf("finnhub: quote %s: %w", symbol, err)
	}

	var data struct {
		Current       float64 `json:"c"`
		Change        float64 `json:"d"`
		ChangePercent float64 `json:"dp"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return domain.StockQuote{}, fmt.Errorf("finnhub: decode quote: %w", err)
	}
	// Finnhub returns zeros instead of an error for unknown symbols.
	if data.Current == 0 {
		return domain.StockQuote{}, fmt.Errorf("finnhub: quote %s: %w", symbol, domain.ErrNoData)
	}

	now := time.Now()
	return domain.StockQuote{
		Symbol:        strings.ToUpper(symbol),
		Price:         data.Current,
		Change:        data.Change,
		ChangePercent: data.ChangePercent,
		MarketStatus:  calc.MarketStatusAt(now),
		Source:        c.Name(),
		FetchedAt:     now,
	}, nil
}

// Quotes fetches symbols one by one; the API has no batch endpoint.
// Symbols that fail are omitted, and an error is returned only when
// every symbol fails.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]domain.StockQuote, error) {
	quotes := make(map[string]domain.StockQuote, len(symbols))
	var lastErr error
	for _, s := range symbols {
		q, err := c.Quote(ctx, s)
		if err != nil {
			lastErr = err
			continue
		}
		quotes[q.Symbol] = q
	}
	if len(quotes) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return quotes, nil
}

// History returns a candle-close series. Windows up to five days use
// hourly candles, longer windows use daily candles.
func (c *Client) History(ctx context.Context, symbol string, days int) (domain.PriceHistory, error) {
	if c.apiKey == "" {
		return domain.PriceHistory{}, fmt.Errorf("finnhub: history %s: %w", symbol, domain.ErrNotConfigured)
	}
	if days <= 0 {
		days = 7
	}

	to := time.Now().Unix()
	from := to - int64(days)*24*60*60
	resolution := "D"
	if days <= 5 {
		resolution = "60"
	}

	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("resolution", resolution)
	params.Set("from", strconv.FormatInt(from, 10))
	params.Set("to", strconv.FormatInt(to, 10))

	body, err := c.doGet(ctx, "/stock/candle", params)
	if err != nil {
		return domain.PriceHistory{}, fmt.Errorf("finnhub: history %s: %w", symbol, err)
	}

	var data struct {
		Closes     []float64 `json:"c"`
		Timestamps []int64   `json:"t"`
		Status     string    `json:"s"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return domain.PriceHistory{}, fmt.Errorf("finnhub: decode candles: %w", err)
	}
	if data.Status != "ok" || len(data.Closes) == 0 {
		return domain.PriceHistory{}, fmt.Errorf("finnhub: history %s: %w", symbol, domain.ErrNoData)
	}

	points := make([]domain.PricePoint, 0, len(data.Timestamps))
	for i, ts := range data.Timestamps {
		if i >= len(data.Closes) {
			break
		}
		points = append(points, domain.PricePoint{
			Time:  time.Unix(ts, 0),
			Price: data.Closes[i],
		})
	}

	return domain.PriceHistory{
		Symbol:    strings.ToUpper(symbol),
		Days:      days,
		Points:    points,
		Source:    c.Name(),
		FetchedAt: time.Now(),
	}, nil
}

// doGet sends a GET request with the API key appended as the token param.
func (c *Client) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	params.Set("token", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Compile-time interface check.
var _ domain.QuoteSource = (*Client)(nil)
