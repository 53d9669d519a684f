package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/parser"
)

// StockService defines the methods that the stock handler requires from
// the service layer.
type StockService interface {
	Quote(ctx context.Context, symbol string) (domain.StockQuote, error)
	Quotes(ctx context.Context, symbols []string) (map[string]domain.StockQuote, error)
	History(ctx context.Context, symbol string, days int) (domain.PriceHistory, error)
	MarketStatus() domain.MarketSession
}

// StockHandler serves live equity quote endpoints.
type StockHandler struct {
	stocks StockService
	logger *slog.Logger
}

// NewStockHandler creates a StockHandler with the given service and logger.
func NewStockHandler(stocks StockService, logger *slog.Logger) *StockHandler {
	return &StockHandler{
		stocks: stocks,
		logger: logger,
	}
}

// Quote returns the latest quote for one ticker.
// GET /api/stocks/quote/{symbol}
func (h *StockHandler) Quote(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}

	quote, err := h.stocks.Quote(r.Context(), symbol)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "stock quote")
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// Quotes returns latest quotes for a comma-separated ticker list.
// GET /api/stocks/quotes?symbols=TSLA,AAPL
func (h *StockHandler) Quotes(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		writeError(w, http.StatusBadRequest, "missing symbols parameter")
		return
	}

	quotes, err := h.stocks.Quotes(r.Context(), symbols)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "stock quotes")
		return
	}

	writeJSON(w, http.StatusOK, quotes)
}

// History returns a daily close series for one ticker.
// GET /api/stocks/history/{symbol}?days=30
func (h *StockHandler) History(w http.ResponseWriter, r *http.Request) {
	symbol := pathParam(r, "symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "missing symbol")
		return
	}
	days := queryInt(r, "days", 30)

	history, err := h.stocks.History(r.Context(), symbol, days)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "stock history")
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// marketStatusResponse describes the current US equity session.
type marketStatusResponse struct {
	Status domain.MarketSession `json:"status"`
	IsOpen bool                 `json:"isOpen"`
	AsOf   time.Time            `json:"asOf"`
}

// MarketStatus returns the current US equity trading session.
// GET /api/stocks/market-status
func (h *StockHandler) MarketStatus(w http.ResponseWriter, r *http.Request) {
	status := h.stocks.MarketStatus()
	writeJSON(w, http.StatusOK, marketStatusResponse{
		Status: status,
		IsOpen: status == domain.SessionOpen,
		AsOf:   time.Now().UTC(),
	})
}

// Symbols returns the recognized stock tickers.
// GET /api/stocks/symbols
func (h *StockHandler) Symbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, parser.SupportedStocks())
}
