// Package coingecko implements a crypto price source backed by the
// CoinGecko public API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// DefaultBaseURL is the CoinGecko v3 API root.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// symbolToID maps ticker symbols to CoinGecko coin IDs.
var symbolToID = map[string]string{
	"BTC":   "bitcoin",
	"ETH":   "ethereum",
	"SOL":   "solana",
	"MATIC": "matic-network",
	"DOGE":  "dogecoin",
	"ADA":   "cardano",
	"LINK":  "chainlink",
	"AVAX":  "avalanche-2",
	"DOT":   "polkadot",
	"XRP":   "ripple",
	"BNB":   "binancecoin",
	"SHIB":  "shiba-inu",
	"LTC":   "litecoin",
	"UNI":   "uniswap",
	"ATOM":  "cosmos",
	"XLM":   "stellar",
	"ALGO":  "algorand",
	"FTM":   "fantom",
	"NEAR":  "near",
	"APT":   "aptos",
}

var idToSymbol = func() map[string]string {
	m := make(map[string]string, len(symbolToID))
	for sym, id := range symbolToID {
		m[id] = sym
	}
	return m
}()

// Client is the REST client for the CoinGecko API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new CoinGecko client. An empty baseURL uses the public API.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name identifies this source in cache entries and usage counters.
func (c *Client) Name() string { return "coingecko" }

// Supports reports whether the symbol maps to a known coin ID.
func (c *Client) Supports(symbol string) bool {
	_, ok := symbolToID[strings.ToUpper(symbol)]
	return ok
}

// Symbols returns the supported ticker symbols, sorted.
func (c *Client) Symbols() []string {
	syms := make([]string, 0, len(symbolToID))
	for s := range symbolToID {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

type simplePriceEntry struct {
	USD       float64 `json:"usd"`
	Change24h float64 `json:"usd_24h_change"`
}

// Price returns the live USD price and 24h change for one symbol.
func (c *Client) Price(ctx context.Context, symbol string) (domain.PriceReading, error) {
	prices, err := c.Prices(ctx, []string{symbol})
	if err != nil {
		return domain.PriceReading{}, err
	}
	reading, ok := prices[strings.ToUpper(symbol)]
	if !ok {
		return domain.PriceReading{}, fmt.Errorf("coingecko: price %s: %w", symbol, domain.ErrNoData)
	}
	return reading, nil
}

// Prices returns live USD prices for multiple symbols in one call.
// Unsupported symbols are skipped; at least one must be supported.
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]domain.PriceReading, error) {
	ids := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if id, ok := symbolToID[strings.ToUpper(s)]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("coingecko: prices: %w", domain.ErrUnsupportedAsset)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")
	params.Set("include_24hr_change", "true")

	body, err := c.doGet(ctx, "/simple/price?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("coingecko: prices: %w", err)
	}

	var data map[string]simplePriceEntry
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("coingecko: decode prices: %w", err)
	}

	now := time.Now()
	readings := make(map[string]domain.PriceReading, len(data))
	for id, entry := range data {
		sym, ok := idToSymbol[id]
		if !ok {
			continue
		}
		readings[sym] = domain.PriceReading{
			Symbol:    sym,
			Price:     entry.USD,
			Change24h: entry.Change24h,
			Source:    c.Name(),
			FetchedAt: now,
		}
	}
	return readings, nil
}

// History returns a daily price series over the given number of days.
func (c *Client) History(ctx context.Context, symbol string, days int) (domain.PriceHistory, error) {
	id, ok := symbolToID[strings.ToUpper(symbol)]
	if !ok {
		return domain.PriceHistory{}, fmt.Errorf("coingecko: history %s: %w", symbol, domain.ErrUnsupportedAsset)
	}
	if days <= 0 {
		days = 7
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("days", strconv.Itoa(days))

	body, err := c.doGet(ctx, "/coins/"+url.PathEscape(id)+"/market_chart?"+params.Encode())
	if err != nil {
		return domain.PriceHistory{}, fmt.Errorf("coingecko: history %s: %w", symbol, err)
	}

	var data struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return domain.PriceHistory{}, fmt.Errorf("coingecko: decode history: %w", err)
	}

	points := make([]domain.PricePoint, 0, len(data.Prices))
	for _, p := range data.Prices {
		points = append(points, domain.PricePoint{
			Time:  time.UnixMilli(int64(p[0])),
			Price: p[1],
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

// doGet sends an unauthenticated GET request to the CoinGecko API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
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
var _ domain.PriceSource = (*Client)(nil)
