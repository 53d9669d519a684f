package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/service"
)

// PolymarketService defines the market-lookup methods the handler needs.
type PolymarketService interface {
	Search(ctx context.Context, query string) ([]domain.PredictionMarket, error)
	Get(ctx context.Context, id string) (domain.PredictionMarket, error)
	FromURL(ctx context.Context, rawURL string) (domain.PredictionMarket, error)
}

// WalletSyncService defines the wallet import method the handler needs.
type WalletSyncService interface {
	Sync(ctx context.Context, wallet string) (service.SyncResult, error)
}

// PolymarketHandler serves Polymarket lookup and wallet sync endpoints.
type PolymarketHandler struct {
	markets PolymarketService
	wallet  WalletSyncService
	logger  *slog.Logger
}

// NewPolymarketHandler creates a PolymarketHandler with the given
// services and logger.
func NewPolymarketHandler(markets PolymarketService, wallet WalletSyncService, logger *slog.Logger) *PolymarketHandler {
	return &PolymarketHandler{
		markets: markets,
		wallet:  wallet,
		logger:  logger,
	}
}

// Search finds markets matching a free-text query.
// GET /api/polymarket/search?q=bitcoin
func (h *PolymarketHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	markets, err := h.markets.Search(r.Context(), query)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "market search")
		return
	}

	writeJSON(w, http.StatusOK, markets)
}

// GetMarket returns one market by its Gamma ID.
// GET /api/polymarket/market/{id}
func (h *PolymarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// fromURLRequest is the body for the URL lookup endpoint.
type fromURLRequest struct {
	URL string `json:"url"`
}

// FromURL resolves a polymarket.com event URL to its market.
// POST /api/polymarket/from-url
func (h *PolymarketHandler) FromURL(w http.ResponseWriter, r *http.Request) {
	var req fromURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.FromURL(r.Context(), req.URL)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "market from url")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// syncRequest is the body for the wallet sync endpoint.
type syncRequest struct {
	Address string `json:"address"`
}

// SyncWallet imports on-chain positions for a wallet address as tracked
// bets.
// POST /api/polymarket/wallet/sync
func (h *PolymarketHandler) SyncWallet(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.wallet.Sync(r.Context(), req.Address)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "wallet sync")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
