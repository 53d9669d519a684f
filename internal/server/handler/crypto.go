package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/polytrack/polytrack/internal/domain"
)

// CryptoService defines the methods that the crypto handler requires
// from the service layer.
type CryptoService interface {
	Price(ctx context.Context, symbol string) (domain.PriceReading, error)
	Prices(ctx context.Context, symbols []string) (map[string]domain.PriceReading, error)
	History(ctx context.Context, symbol string, days int) (domain.PriceHistory, error)
	Symbols() []string
}

// CryptoHandler serves live crypto price endpoints.
type CryptoHandler struct {
	crypto CryptoService
	logger *slog.Logger
}

// NewCryptoHandler creates a CryptoHandler with the given service and logger.
func NewCryptoHandler(crypto CryptoService, logger *slog.Logger) *CryptoHandler {
	return &CryptoHandler{
		crypto: crypto,
		logger: logger,
	}
}

// Price returns the latest price for one symbol.
// GET /api/crypto/price/{symbol}
func (h *CryptoHandler) Price(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}

	reading, err := h.crypto.Price(r.Context(), symbol)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "crypto price")
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

// Prices returns latest prices for a comma-separated symbol list.
// GET /api/crypto/prices?symbols=BTC,ETH
func (h *CryptoHandler) Prices(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "missing symbols parameter")
		return
	}

	readings, err := h.crypto.Prices(r.Context(), symbols)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "crypto prices")
		return
	}

	writeJSON(w, http.StatusOK, readings)
}

// History returns a daily price series for one symbol.
// GET /api/crypto/history/{symbol}?days=7
func (h *CryptoHandler) History(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}
	days := queryInt(r, "days", 7)

	history, err := h.crypto.History(r.Context(), symbol, days)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "crypto history")
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// Symbols returns every symbol the configured sources can serve.
// GET /api/crypto/symbols
func (h *CryptoHandler) Symbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.crypto.Symbols())
}

// splitSymbols parses a comma-separated symbol list, dropping empties.
func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
