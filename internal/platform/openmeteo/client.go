// Package openmeteo implements a weather source backed by the Open-Meteo
// API, which needs no API key and is the primary weather provider.
// Readings are normalized to Fahrenheit and mph.
package openmeteo

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
	"strings"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
)

// DefaultBaseURL is the Open-Meteo v1 API root.
const DefaultBaseURL = "https://api.open-meteo.com/v1"

type coordinates struct {
	Lat float64
	Lon float64
}

// cities maps normalized city names to coordinates. Short aliases
// (NYC, LA, SF, DC, VEGAS) resolve to the same coordinates as the
// full name but are excluded from the supported-cities listing.
var cities = map[string]coordinates{
	"NEW_YORK":       {40.7128, -74.006},
	"NYC":            {40.7128, -74.006},
	"LOS_ANGELES":    {34.0522, -118.2437},
	"LA":             {34.0522, -118.2437},
	"CHICAGO":        {41.8781, -87.6298},
	"MIAMI":          {25.7617, -80.1918},
	"HOUSTON":        {29.7604, -95.3698},
	"PHOENIX":        {33.4484, -112.074},
	"PHILADELPHIA":   {39.9526, -75.1652},
	"SAN_ANTONIO":    {29.4241, -98.4936},
	"SAN_DIEGO":      {32.7157, -117.1611},
	"DALLAS":         {32.7767, -96.797},
	"SAN_JOSE":       {37.3382, -121.8863},
	"AUSTIN":         {30.2672, -97.7431},
	"JACKSONVILLE":   {30.3322, -81.6557},
	"FORT_WORTH":     {32.7555, -97.3308},
	"COLUMBUS":       {39.9612, -82.9988},
	"CHARLOTTE":      {35.2271, -80.8431},
	"SAN_FRANCISCO":  {37.7749, -122.4194},
	"SF":             {37.7749, -122.4194},
	"INDIANAPOLIS":   {39.7684, -86.1581},
	"SEATTLE":        {47.6062, -122.3321},
	"DENVER":         {39.7392, -104.9903},
	"WASHINGTON":     {38.9072, -77.0369},
	"DC":             {38.9072, -77.0369},
	"BOSTON":         {42.3601, -71.0589},
	"NASHVILLE":      {36.1627, -86.7816},
	"DETROIT":        {42.3314, -83.0458},
	"PORTLAND":       {45.5152, -122.6784},
	"LAS_VEGAS":      {36.1699, -115.1398},
	"VEGAS":          {36.1699, -115.1398},
	"ATLANTA":        {33.749, -84.388},
	"MEMPHIS":        {35.1495, -90.049},
	"BALTIMORE":      {39.2904, -76.6122},
	"MILWAUKEE":      {43.0389, -87.9065},
	"ALBUQUERQUE":    {35.0844, -106.6504},
	"TUCSON":         {32.2226, -110.9747},
	"FRESNO":         {36.7378, -119.7871},
	"SACRAMENTO":     {38.5816, -121.4944},
	"KANSAS_CITY":    {39.0997, -94.5786},
	"MESA":           {33.4152, -111.8315},
	"OMAHA":          {41.2565, -95.9345},
	"CLEVELAND":      {41.4993, -81.6944},
	"MINNEAPOLIS":    {44.9778, -93.265},
	"NEW_ORLEANS":    {29.9511, -90.0715},
	"TAMPA":          {27.9506, -82.4572},
	"ORLANDO":        {28.5383, -81.3792},
	"SALT_LAKE_CITY": {40.7608, -111.891},
	"PITTSBURGH":     {40.4406, -79.9959},
	"CINCINNATI":     {39.1031, -84.512},
	"ST_LOUIS":       {38.627, -90.1994},
}

var aliases = map[string]bool{
	"NYC": true, "LA": true, "SF": true, "DC": true, "VEGAS": true,
}

// wmoCodes translates WMO weather interpretation codes to readable
// condition names.
var wmoCodes = map[int]string{
	0:  "Clear",
	1:  "Mainly Clear",
	2:  "Partly Cloudy",
	3:  "Overcast",
	45: "Foggy",
	48: "Depositing Rime Fog",
	51: "Light Drizzle",
	53: "Moderate Drizzle",
	55: "Dense Drizzle",
	61: "Slight Rain",
	63: "Moderate Rain",
	65: "Heavy Rain",
	66: "Light Freezing Rain",
	67: "Heavy Freezing Rain",
	71: "Slight Snow",
	73: "Moderate Snow",
	75: "Heavy Snow",
	77: "Snow Grains",
	80: "Slight Rain Showers",
	81: "Moderate Rain Showers",
	82: "Violent Rain Showers",
	85: "Slight Snow Showers",
	86: "Heavy Snow Showers",
	95: "Thunderstorm",
	96: "Thunderstorm with Slight Hail",
	99: "Thunderstorm with Heavy Hail",
}

// NormalizeCity uppercases a city name and replaces spaces with
// underscores, matching the keys of the city table.
func NormalizeCity(city string) string {
	return strings.Join(strings.Fields(strings.ToUpper(city)), "_")
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func kmhToMph(kmh float64) float64 {
	return kmh * 0.621371
}

// Client is the REST client for the Open-Meteo API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Open-Meteo client. An empty baseURL uses the public API.
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
func (c *Client) Name() string { return "open-meteo" }

// Supports reports whether the city (or one of its aliases) is known.
func (c *Client) Supports(city string) bool {
	_, ok := cities[NormalizeCity(city)]
	return ok
}

// Cities returns the supported city names, aliases excluded, sorted.
func (c *Client) Cities() []string {
	names := make([]string, 0, len(cities))
	for name := range cities {
		if !aliases[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		Humidity    float64 `json:"relative_humidity_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
	Hourly struct {
		Time        []string  `json:"time"`
		Temperature []float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// Current returns the live conditions for a city.
func (c *Client) Current(ctx context.Context, city string) (domain.WeatherReading, error) {
	data, err := c.fetch(ctx, city, 2)
	if err != nil {
		return domain.WeatherReading{}, err
	}

	condition, ok := wmoCodes[data.Current.WeatherCode]
	if !ok {
		condition = "Unknown"
	}

	return domain.WeatherReading{
		City:        NormalizeCity(city),
		Temperature: math.Round(celsiusToFahrenheit(data.Current.Temperature)),
		Condition:   condition,
		Humidity:    data.Current.Humidity,
		WindSpeed:   math.Round(kmhToMph(data.Current.WindSpeed)),
		Source:      c.Name(),
		FetchedAt:   time.Now(),
	}, nil
}

// Forecast returns an hourly temperature forecast covering the given
// number of hours (capped at 16 days out).
func (c *Client) Forecast(ctx context.Context, city string, hours int) (domain.Forecast, error) {
	if hours <= 0 {
		hours = 24
	}
	days := (hours + 23) / 24
	if days > 16 {
		days = 16
	}

	data, err := c.fetch(ctx, city, days)
	if err != nil {
		return domain.Forecast{}, err
	}

	n := len(data.Hourly.Time)
	if hours < n {
		n = hours
	}
	points := make([]domain.ForecastPoint, 0, n)
	for i := 0; i < n; i++ {
		// Hourly times come in the location's local time without a zone.
		t, err := time.Parse("2006-01-02T15:04", data.Hourly.Time[i])
		if err != nil {
			continue
		}
		temp := 0.0
		if i < len(data.Hourly.Temperature) {
			temp = data.Hourly.Temperature[i]
		}
		points = append(points, domain.ForecastPoint{
			Time:        t,
			Temperature: math.Round(celsiusToFahrenheit(temp)),
		})
	}

	return domain.Forecast{
		City:      NormalizeCity(city),
		Points:    points,
		Source:    c.Name(),
		FetchedAt: time.Now(),
	}, nil
}

func (c *Client) fetch(ctx context.Context, city string, days int) (*forecastResponse, error) {
	coords, ok := cities[NormalizeCity(city)]
	if !ok {
		return nil, fmt.Errorf("openmeteo: city %s: %w", city, domain.ErrUnsupportedAsset)
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(coords.Lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(coords.Lon, 'f', -1, 64))
	params.Set("current", "temperature_2m,relative_humidity_2m,wind_speed_10m,weather_code")
	params.Set("hourly", "temperature_2m")
	params.Set("temperature_unit", "celsius")
	params.Set("wind_speed_unit", "kmh")
	params.Set("forecast_days", strconv.Itoa(days))
	params.Set("timezone", "auto")

	body, err := c.doGet(ctx, "/forecast?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("openmeteo: fetch %s: %w", city, err)
	}

	var data forecastResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("openmeteo: decode %s: %w", city, err)
	}
	return &data, nil
}

// doGet sends an unauthenticated GET request to the Open-Meteo API.
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
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}

// Compile-time interface check.
var _ domain.WeatherSource = (*Client)(nil)
