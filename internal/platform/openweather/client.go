// Package openweather implements a weather source backed by the
// OpenWeatherMap API. It requires an API key and covers fewer cities
// than Open-Meteo, so it acts as the fallback source.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/platform/openmeteo"
)

// DefaultBaseURL is the OpenWeatherMap v2.5 API root.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

type coordinates struct {
	Lat float64
	Lon float64
}

var cities = map[string]coordinates{
	"NEW_YORK":      {40.7128, -74.006},
	"NYC":           {40.7128, -74.006},
	"LOS_ANGELES":   {34.0522, -118.2437},
	"LA":            {34.0522, -118.2437},
	"CHICAGO":       {41.8781, -87.6298},
	"MIAMI":         {25.7617, -80.1918},
	"HOUSTON":       {29.7604, -95.3698},
	"PHOENIX":       {33.4484, -112.074},
	"PHILADELPHIA":  {39.9526, -75.1652},
	"SAN_FRANCISCO": {37.7749, -122.4194},
	"SF":            {37.7749, -122.4194},
	"SEATTLE":       {47.6062, -122.3321},
	"DENVER":        {39.7392, -104.9903},
	"BOSTON":        {42.3601, -71.0589},
	"ATLANTA":       {33.749, -84.388},
	"DALLAS":        {32.7767, -96.797},
	"LAS_VEGAS":     {36.1699, -115.1398},
	"VEGAS":         {36.1699, -115.1398},
}

// Client is the REST client for the OpenWeatherMap API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new OpenWeatherMap client. The API key is required;
// wiring skips this source entirely when no key is configured.
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
func (c *Client) Name() string { return "openweather" }

// Supports reports whether the city is in this provider's smaller table.
func (c *Client) Supports(city string) bool {
	_, ok := cities[openmeteo.NormalizeCity(city)]
	return ok
}

// Cities returns the supported city names, sorted.
func (c *Client) Cities() []string {
	names := make([]string, 0, len(cities))
	for name := range cities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Current returns the live conditions for a city. Requests use
// imperial units, so no conversion is needed.
func (c *Client) Current(ctx context.Context, city string) (domain.WeatherReading, error) {
	coords, err := c.coordinates(city)
	if err != nil {
		return domain.WeatherReading{}, err
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	params.Set("units", "imperial")

	body, err := c.doGet(ctx, "/weather", params)
	if err != nil {
		return domain.WeatherReading{}, fmt.Errorf("openweather: current %s: %w", city, err)
	}

	var data struct {
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return domain.WeatherReading{}, fmt.Errorf("openweather: decode %s: %w", city, err)
	}

	condition := "Unknown"
	if len(data.Weather) > 0 {
		condition = data.Weather[0].Main
	}

	return domain.WeatherReading{
		City:        openmeteo.NormalizeCity(city),
		Temperature: math.Round(data.Main.Temp),
		Condition:   condition,
		Humidity:    data.Main.Humidity,
		WindSpeed:   math.Round(data.Wind.Speed),
		Source:      c.Name(),
		FetchedAt:   time.Now(),
	}, nil
}

// Forecast returns a forecast in three-hour steps covering the given
// number of hours.
func (c *Client) Forecast(ctx context.Context, city string, hours int) (domain.Forecast, error) {
	coords, err := c.coordinates(city)
	if err != nil {
		return domain.Forecast{}, err
	}
	if hours <= 0 {
		hours = 24
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	params.Set("units", "imperial")
	params.Set("cnt", strconv.Itoa((hours+2)/3))

	body, err := c.doGet(ctx, "/forecast", params)
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("openweather: forecast %s: %w", city, err)
	}

	var data struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				Temp float64 `json:"temp"`
			} `json:"main"`
			Weather []struct {
				Main string `json:"main"`
			} `json:"weather"`
		} `json:"list"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return domain.Forecast{}, fmt.Errorf("openweather: decode forecast %s: %w", city, err)
	}

	points := make([]domain.ForecastPoint, 0, len(data.List))
	for _, item := range data.List {
		condition := ""
		if len(item.Weather) > 0 {
			condition = item.Weather[0].Main
		}
		points = append(points, domain.ForecastPoint{
			Time:        time.Unix(item.Dt, 0),
			Temperature: math.Round(item.Main.Temp),
			Condition:   condition,
		})
	}

	return domain.Forecast{
		City:      openmeteo.NormalizeCity(city),
		Points:    points,
		Source:    c.Name(),
		FetchedAt: time.Now(),
	}, nil
}

func (c *Client) coordinates(city string) (coordinates, error) {
	coords, ok := cities[openmeteo.NormalizeCity(city)]
	if !ok {
		return coordinates{}, fmt.Errorf("openweather: city %s: %w", city, domain.ErrUnsupportedAsset)
	}
	return coords, nil
}

// doGet sends a GET request with the API key appended as appid.
func (c *Client) doGet(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, domain.ErrNotConfigured
	}
	params.Set("appid", c.apiKey)

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
var _ domain.WeatherSource = (*Client)(nil)
