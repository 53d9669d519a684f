package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/polytrack/polytrack/internal/domain"
)

// WeatherService defines the methods that the weather handler requires
// from the service layer.
type WeatherService interface {
	Current(ctx context.Context, city string) (domain.WeatherReading, error)
	Forecast(ctx context.Context, city string, hours int) (domain.Forecast, error)
	Cities() []string
}

// WeatherHandler serves live weather endpoints.
type WeatherHandler struct {
	weather WeatherService
	logger  *slog.Logger
}

// NewWeatherHandler creates a WeatherHandler with the given service and logger.
func NewWeatherHandler(weather WeatherService, logger *slog.Logger) *WeatherHandler {
	return &WeatherHandler{
		weather: weather,
		logger:  logger,
	}
}

// Current returns current conditions for one city.
// GET /api/weather/current/{city}
func (h *WeatherHandler) Current(w http.ResponseWriter, r *http.Request) {
	city := pathParam(r, "city")
	if city == "" {
		writeError(w, http.StatusBadRequest, "missing city")
		return
	}

	reading, err := h.weather.Current(r.Context(), city)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "current weather")
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

// Forecast returns an hourly forecast for one city.
// GET /api/weather/forecast/{city}?hours=24
func (h *WeatherHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	city := pathParam(r, "city")
	if city == "" {
		writeError(w, http.StatusBadRequest, "missing city")
		return
	}
	hours := queryInt(r, "hours", 24)

	forecast, err := h.weather.Forecast(r.Context(), city, hours)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "weather forecast")
		return
	}

	writeJSON(w, http.StatusOK, forecast)
}

// Cities returns every city the configured sources can serve.
// GET /api/weather/cities
func (h *WeatherHandler) Cities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.weather.Cities())
}
