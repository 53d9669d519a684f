package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/parser"
	"github.com/polytrack/polytrack/internal/service"
)

// BetService defines the methods that the bet handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation beyond its input types.
type BetService interface {
	Create(ctx context.Context, input service.CreateBetInput) (domain.Bet, error)
	Get(ctx context.Context, id string) (domain.Bet, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, int64, error)
	Update(ctx context.Context, id string, input service.UpdateBetInput) (domain.Bet, error)
	Delete(ctx context.Context, id string) error
	Resolve(ctx context.Context, id string, outcome domain.BetOutcome) (domain.Bet, error)
	Status(ctx context.Context, id string) (domain.BetStatus, error)
	Statuses(ctx context.Context) ([]domain.BetStatus, error)
}

// BetHandler serves bet CRUD and live-status HTTP endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with the given service and logger.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		logger: logger,
	}
}

// listBetsResponse wraps the list endpoint output with metadata.
type listBetsResponse struct {
	Bets   []domain.Bet `json:"bets"`
	Total  int64        `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// ListBets returns tracked bets with pagination and optional filters.
// GET /api/bets?limit=50&offset=0&type=crypto&resolved=false
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	bets, total, err := h.bets.List(r.Context(), opts)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "list bets")
		return
	}

	writeJSON(w, http.StatusOK, listBetsResponse{
		Bets:   bets,
		Total:  total,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// CreateBet creates a new tracked bet. Fields missing from the request
// are inferred from the market question text.
// POST /api/bets
func (h *BetHandler) CreateBet(w http.ResponseWriter, r *http.Request) {
	var input service.CreateBetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bet, err := h.bets.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "create bet")
		return
	}

	writeJSON(w, http.StatusCreated, bet)
}

// GetBet returns a single bet by its ID.
// GET /api/bets/{id}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	bet, err := h.bets.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "get bet")
		return
	}

	writeJSON(w, http.StatusOK, bet)
}

// UpdateBet applies a partial update to an unresolved bet.
// PUT /api/bets/{id}
func (h *BetHandler) UpdateBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	var input service.UpdateBetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bet, err := h.bets.Update(r.Context(), id, input)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "update bet")
		return
	}

	writeJSON(w, http.StatusOK, bet)
}

// DeleteBet removes a bet.
// DELETE /api/bets/{id}
func (h *BetHandler) DeleteBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	if err := h.bets.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err, "delete bet")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// resolveRequest is the body for the resolve endpoint.
type resolveRequest struct {
	Outcome domain.BetOutcome `json:"outcome"`
}

// ResolveBet marks a bet as settled with the given outcome.
// POST /api/bets/{id}/resolve
func (h *BetHandler) ResolveBet(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bet, err := h.bets.Resolve(r.Context(), id, req.Outcome)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "resolve bet")
		return
	}

	writeJSON(w, http.StatusOK, bet)
}

// BetStatus returns the live winning/losing computation for one bet.
// GET /api/bets/{id}/status
func (h *BetHandler) BetStatus(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing bet id")
		return
	}

	status, err := h.bets.Status(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "bet status")
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// BetStatuses returns live status for every unresolved bet whose asset
// has a reachable data source.
// GET /api/bets/status
func (h *BetHandler) BetStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.bets.Statuses(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "bet statuses")
		return
	}

	writeJSON(w, http.StatusOK, statuses)
}

// parseRequest is the body for the dry-run parse endpoint.
type parseRequest struct {
	Market string `json:"market"`
}

// ParseBet runs the market-text parser without creating anything, so
// clients can preview what a bet would look like.
// POST /api/bets/parse
func (h *BetHandler) ParseBet(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	parsed, err := parser.Parse(req.Market, time.Now())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "parse market")
		return
	}

	writeJSON(w, http.StatusOK, parsed)
}
