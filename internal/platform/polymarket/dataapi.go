package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// DefaultDataURL is the public data API root.
const DefaultDataURL = "https://data-api.polymarket.com"

// positionsPageSize caps how many positions one sync pulls.
const positionsPageSize = 100

// DataClient is the REST client for the Polymarket data API, which
// reports on-chain positions and portfolio value per wallet.
type DataClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewDataClient creates a new data API client. An empty baseURL uses
// the public API.
func NewDataClient(baseURL string) *DataClient {
	if baseURL == "" {
		baseURL = DefaultDataURL
	}
	return &DataClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Positions returns the open positions held by a wallet address.
func (d *DataClient) Positions(ctx context.Context, wallet string) ([]domain.WalletPosition, error) {
	params := url.Values{}
	params.Set("user", wallet)
	params.Set("limit", strconv.Itoa(positionsPageSize))

	body, err := d.doGet(ctx, "/positions?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/data: positions %s: %w", wallet, err)
	}

	var apiPositions []APIPosition
	if err := json.Unmarshal(body, &apiPositions); err != nil {
		return nil, fmt.Errorf("polymarket/data: decode positions: %w", err)
	}

	positions := make([]domain.WalletPosition, 0, len(apiPositions))
	for i := range apiPositions {
		positions = append(positions, apiPositions[i].ToWalletPosition())
	}
	return positions, nil
}

// PortfolioValue returns the total current value of a wallet's positions.
func (d *DataClient) PortfolioValue(ctx context.Context, wallet string) (float64, error) {
	params := url.Values{}
	params.Set("user", wallet)

	body, err := d.doGet(ctx, "/value?"+params.Encode())
	if err != nil {
		return 0, fmt.Errorf("polymarket/data: portfolio value %s: %w", wallet, err)
	}

	var entries []struct {
		Value float64 `json:"value"`
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return 0, fmt.Errorf("polymarket/data: decode value: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[0].Value, nil
}

// doGet sends an unauthenticated GET request to the data API.
func (d *DataClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
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
