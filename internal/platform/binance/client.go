// Package binance implements a crypto price source backed by the Binance
// public market-data API. It serves as the fallback behind CoinGecko.
package binance

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

	"golang.org/x/sync/errgroup"

	"github.com/polytrack/polytrack/internal/domain"
)

// DefaultBaseURL is the Binance spot API root.
const DefaultBaseURL = "https://api.binance.com/api/v3"

// symbolToPair maps ticker symbols to Binance USDT trading pairs.
var symbolToPair = map[string]string{
	"BTC":   "BTCUSDT",
	"ETH":   "ETHUSDT",
	"SOL":   "SOLUSDT",
	"MATIC": "MATICUSDT",
	"DOGE":  "DOGEUSDT",
	"ADA":   "ADAUSDT",
	"LINK":  "LINKUSDT",
	"AVAX":  "AVAXUSDT",
	"DOT":   "DOTUSDT",
	"XRP":   "XRPUSDT",
	"BNB":   "BNBUSDT",
	"SHIB":  "SHIBUSDT",
	"LTC":   "LTCUSDT",
	"UNI":   "UNIUSDT",
	"ATOM":  "ATOMUSDT",
	"XLM":   "XLMUSDT",
	"ALGO":  "ALGOUSDT",
	"FTM":   "FTMUSDT",
	"NEAR":  "NEARUSDT",
	"APT":   "APTUSDT",
}

var pairToSymbol = func() map[string]string {
	m := make(map[string]string, len(symbolToPair))
	for sym, pair := range symbolToPair {
		m[pair] = sym
	}
	return m
}()

// Client is the REST client for the Binance market-data API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Binance client. An empty baseURL uses the public API.
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
func (c *Client) Name() string { return "binance" }

// Supports reports whether the symbol has a USDT pair.
func (c *Client) Supports(symbol string) bool {
	_, ok := symbolToPair[strings.ToUpper(symbol)]
	return ok
}

// Symbols returns the supported ticker symbols, sorted.
func (c *Client) Symbols() []string {
	syms := make([]string, 0, len(symbolToPair))
	for s := range symbolToPair {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type ticker24h struct {
	Symbol             string `json:"symbol"`
	PriceChangePercent string `json:"priceChangePercent"`
}

// Price returns the live price and 24h change for one symbol. The two
// upstream endpoints are fetched concurrently.
func (c *Client) Price(ctx context.Context, symbol string) (domain.PriceReading, error) {
	pair, ok := symbolToPair[strings.ToUpper(symbol)]
	if !ok {
		return domain.PriceReading{}, fmt.Errorf("binance: price %s: %w", symbol, domain.ErrUnsupportedAsset)
	}

	var price tickerPrice
	var change ticker24h

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := c.doGet(gctx, "/ticker/price?symbol="+pair)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &price)
	})
	g.Go(func() error {
		body, err := c.doGet(gctx, "/ticker/24hr?symbol="+pair)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &change)
	})
	if err := g.Wait(); err != nil {
		return domain.PriceReading{}, fmt.Errorf("binance: price %s: %w", symbol, err)
	}

	p, err := strconv.ParseFloat(price.Price, 64)
	if err != nil {
		return domain.PriceReading{}, fmt.Errorf("binance: parse price %s: %w", symbol, err)
	}
	ch, _ := strconv.ParseFloat(change.PriceChangePercent, 64)

	return domain.PriceReading{
		Symbol:    strings.ToUpper(symbol),
		Price:     p,
		Change24h: ch,
		Source:    c.Name(),
		FetchedAt: time.Now(),
	}, nil
}

// Prices returns live prices for multiple symbols using the batch ticker
// endpoints. Unsupported symbols are skipped.
func (c *Client) Prices(ctx context.Context, symbols []string) (map[string]domain.PriceReading, error) {
	pairs := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if pair, ok := symbolToPair[strings.ToUpper(s)]; ok {
			pairs = append(pairs, pair)
		}
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("binance: prices: %w", domain.ErrUnsupportedAsset)
	}

	// The batch endpoints take a JSON array of pair names.
	list, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("binance: encode pairs: %w", err)
	}
	query := "?symbols=" + url.QueryEscape(string(list))

	var prices []tickerPrice
	var changes []ticker24h

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := c.doGet(gctx, "/ticker/price"+query)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &prices)
	})
	g.Go(func() error {
		body, err := c.doGet(gctx, "/ticker/24hr"+query)
		if err != nil {
			return err
		}
		return json.Unmarshal(body, &changes)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("binance: prices: %w", err)
	}

	changeByPair := make(map[string]float64, len(changes))
	for _, ch := range changes {
		v, _ := strconv.ParseFloat(ch.PriceChangePercent, 64)
		changeByPair[ch.Symbol] = v
	}

	now := time.Now()
	readings := make(map[string]domain.PriceReading, len(prices))
	for _, p := range prices {
		sym, ok := pairToSymbol[p.Symbol]
		if !ok {
			sym = strings.TrimSuffix(p.Symbol, "USDT")
		}
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			continue
		}
		readings[sym] = domain.PriceReading{
			Symbol:    sym,
			Price:     v,
			Change24h: changeByPair[p.Symbol],
			Source:    c.Name(),
			FetchedAt: now,
		}
	}
	return readings, nil
}

// History returns a candle-close series over the given number of days.
// Interval granularity widens with the window: hourly up to a day,
// 4-hourly up to a week, daily beyond.
func (c *Client) History(ctx context.Context, symbol string, days int) (domain.PriceHistory, error) {
	pair, ok := symbolToPair[strings.ToUpper(symbol)]
	if !ok {
		return domain.PriceHistory{}, fmt.Errorf("binance: history %s: %w", symbol, domain.ErrUnsupportedAsset)
	}
	if days <= 0 {
		days = 7
	}

	var interval string
	var limit int
	switch {
	case days <= 1:
		interval, limit = "1h", 24
	case days <= 7:
		interval, limit = "4h", days*6
	default:
		interval, limit = "1d", days
	}

	params := url.Values{}
	params.Set("symbol", pair)
	params.Set("interval", interval)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doGet(ctx, "/klines?"+params.Encode())
	if err != nil {
		return domain.PriceHistory{}, fmt.Errorf("binance: history %s: %w", symbol, err)
	}

	// Klines come as positional arrays: open time, O, H, L, C, ...
	var klines [][]json.RawMessage
	if err := json.Unmarshal(body, &klines); err != nil {
		return domain.PriceHistory{}, fmt.Errorf("binance: decode klines: %w", err)
	}

	points := make([]domain.PricePoint, 0, len(klines))
	for _, k := range klines {
		if len(k) < 5 {
			continue
		}
		var openMs int64
		var closeStr string
		if err := json.Unmarshal(k[0], &openMs); err != nil {
			continue
		}
		if err := json.Unmarshal(k[4], &closeStr); err != nil {
			continue
		}
		closePrice, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			continue
		}
		points = append(points, domain.PricePoint{
			Time:  time.UnixMilli(openMs),
			Price: closePrice,
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

// doGet sends an unauthenticated GET request to the Binance API.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
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
// Binance signals bans with 418 as well as 429.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests, http.StatusTeapot:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Compile-time interface check.
var _ domain.PriceSource = (*Client)(nil)
