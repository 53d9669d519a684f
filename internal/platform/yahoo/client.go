// Package yahoo implements an equity quote source backed by the public
// Yahoo Finance endpoints. Yahoo serves as the primary stock source
// because it needs no API key and supports batch quotes.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

const (
	// DefaultQuoteURL is the Yahoo v7 quote endpoint.
	DefaultQuoteURL = "https://query1.finance.yahoo.com/v7/finance/quote"
	// DefaultChartURL is the Yahoo v8 chart endpoint root.
	DefaultChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

	// Yahoo rejects requests without a browser-like user agent.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// marketStateMap translates Yahoo market states to sessions.
var marketStateMap = map[string]domain.MarketSession{
	"REGULAR":  domain.SessionOpen,
	"PRE":      domain.SessionPreMarket,
	"PREPRE":   domain.SessionPreMarket,
	"POST":     domain.SessionAfterHours,
	"POSTPOST": domain.SessionAfterHours,
	"CLOSED":   domain.SessionClosed,
}

// Client is the REST client for the Yahoo Finance endpoints.
type Client struct {
	quoteURL   string
	chartURL   string
	httpClient *http.Client
}

// New creates a new Yahoo Finance client. Empty URLs use the public
// endpoints.
func New(quoteURL, chartURL string) *Client {
	if quoteURL == "" {
		quoteURL = DefaultQuoteURL
	}
	if chartURL == "" {
		chartURL = DefaultChartURL
	}
	return &Client{
		quoteURL: quoteURL,
		chartURL: chartURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Name identifies this source in cache entries and usage counters.
func (c *Client) Name() string { return "yahoo" }

type quoteResult struct {
	Symbol                     string  `json:"symbol"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketChange        float64 `json:"regularMarketChange"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	MarketState                string  `json:"marketState"`
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

// Quote returns the live quote for one symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.StockQuote, error) {
	quotes, err := c.Quotes(ctx, []string{symbol})
	if err != nil {
		return domain.StockQuote{}, err
	}
	q, ok := quotes[strings.ToUpper(symbol)]
	if !ok {
		return domain.StockQuote{}, fmt.Errorf("yahoo: quote %s: %w", symbol, domain.ErrNoData)
	}
	return q, nil
}

// Quotes returns live quotes for multiple symbols in one call.
func (c *Client) Quotes(ctx context.Context, symbols []string) (map[string]domain.StockQuote, error) {
	upper := make([]string, len(symbols))
	for i, s := range symbols {
		upper[i] = strings.ToUpper(s)
	}

	params := url.Values{}
	params.Set("symbols", strings.Join(upper, ","))

	body, err := c.doGet(ctx, c.quoteURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("yahoo: quotes: %w", err)
	}

	var data quoteResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("yahoo: decode quotes: %w", err)
	}
	if e := data.QuoteResponse.Error; e != nil {
		return nil, fmt.Errorf("yahoo: quotes: %s", e.Description)
	}

	now := time.Now()
	quotes := make(map[string]domain.StockQuote, len(data.QuoteResponse.Result))
	for _, q := range data.QuoteResponse.Result {
		session, ok := marketStateMap[q.MarketState]
		if !ok {
			session = domain.SessionClosed
		}
		quotes[q.Symbol] = domain.StockQuote{
			Symbol:        q.Symbol,
			Price:         q.RegularMarketPrice,
			Change:        q.RegularMarketChange,
			ChangePercent: q.RegularMarketChangePercent,
			MarketStatus:  session,
			Source:        c.Name(),
			FetchedAt:     now,
		}
	}
	return quotes, nil
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// History returns a close-price series. Windows up to five days use
// hourly bars, longer windows use daily bars.
func (c *Client) History(ctx context.Context, symbol string, days int) (domain.PriceHistory, error) {
	if days <= 0 {
		days = 7
	}

	interval := "1d"
	if days <= 5 {
		interval = "1h"
	}
	var rng string
	switch {
	case days <= 5:
		rng = "5d"
	case days <= 30:
		rng = "1mo"
	case days <= 90:
		rng = "3mo"
	default:
		rng = "1y"
	}

	params := url.Values{}
	params.Set("interval", interval)
	params.Set("range", rng)

	endpoint := c.chartURL + "/" + url.PathEscape(strings.ToUpper(symbol)) + "?" + params.Encode()
	body, err := c.doGet(ctx, endpoint)
	if err != nil {
		return domain.PriceHistory{}, fmt.Errorf("yahoo: history %s: %w", symbol, err)
	}

	var data chartResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return domain.PriceHistory{}, fmt.Errorf("yahoo: decode history: %w", err)
	}
	if e := data.Chart.Error; e != nil {
		return domain.PriceHistory{}, fmt.Errorf("yahoo: history %s: %s", symbol, e.Description)
	}
	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Indicators.Quote) == 0 {
		return domain.PriceHistory{}, fmt.Errorf("yahoo: history %s: %w", symbol, domain.ErrNoData)
	}

	result := data.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close

	points := make([]domain.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil || *closes[i] <= 0 {
			continue
		}
		points = append(points, domain.PricePoint{
			Time:  time.Unix(ts, 0),
			Price: *closes[i],
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

// doGet sends a GET request with the browser user agent Yahoo expects.
func (c *Client) doGet(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

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
