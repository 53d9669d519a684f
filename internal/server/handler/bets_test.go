package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/service"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// stubBets returns canned values for the handler under test.
type stubBets struct {
	bet    domain.Bet
	bets   []domain.Bet
	status domain.BetStatus
	err    error
}

func (s *stubBets) Create(context.Context, service.CreateBetInput) (domain.Bet, error) {
	return s.bet, s.err
}

func (s *stubBets) Get(_ context.Context, id string) (domain.Bet, error) {
	if s.err != nil {
		return domain.Bet{}, s.err
	}
	return s.bet, nil
}

func (s *stubBets) List(context.Context, domain.ListOpts) ([]domain.Bet, int64, error) {
	return s.bets, int64(len(s.bets)), s.err
}

func (s *stubBets) Update(context.Context, string, service.UpdateBetInput) (domain.Bet, error) {
	return s.bet, s.err
}

func (s *stubBets) Delete(context.Context, string) error { return s.err }

func (s *stubBets) Resolve(context.Context, string, domain.BetOutcome) (domain.Bet, error) {
	return s.bet, s.err
}

func (s *stubBets) Status(context.Context, string) (domain.BetStatus, error) {
	return s.status, s.err
}

func (s *stubBets) Statuses(context.Context) ([]domain.BetStatus, error) {
	return []domain.BetStatus{s.status}, s.err
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestGetBetSuccess(t *testing.T) {
	h := NewBetHandler(&stubBets{bet: domain.Bet{ID: "bet-1", Market: "Bitcoin above $100k"}}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/bets/bet-1", nil)
	req.SetPathValue("id", "bet-1")
	rec := httptest.NewRecorder()

	h.GetBet(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !env.Success {
		t.Errorf("success = false, error = %q", env.Error)
	}
}

func TestGetBetErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", domain.ErrNotFound, http.StatusNotFound},
		{"validation", domain.ErrValidation, http.StatusBadRequest},
		{"unsupported", domain.ErrUnsupportedAsset, http.StatusBadRequest},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"no data", domain.ErrNoData, http.StatusServiceUnavailable},
		{"internal", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewBetHandler(&stubBets{err: fmt.Errorf("wrapped: %w", tt.err)}, testLogger())

			req := httptest.NewRequest(http.MethodGet, "/api/bets/bet-1", nil)
			req.SetPathValue("id", "bet-1")
			rec := httptest.NewRecorder()

			h.GetBet(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
			if env := decodeEnvelope(t, rec); env.Success {
				t.Error("success = true on error response")
			}
		})
	}
}

func TestCreateBetRejectsBadBody(t *testing.T) {
	h := NewBetHandler(&stubBets{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/bets", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	h.CreateBet(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestListBetsPagination(t *testing.T) {
	stub := &stubBets{bets: []domain.Bet{{ID: "a"}, {ID: "b"}}}
	h := NewBetHandler(stub, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/bets?limit=10&offset=5&resolved=false", nil)
	rec := httptest.NewRecorder()

	h.ListBets(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("data = %T", env.Data)
	}
	if data["total"].(float64) != 2 {
		t.Errorf("total = %v", data["total"])
	}
	if data["limit"].(float64) != 10 || data["offset"].(float64) != 5 {
		t.Errorf("limit/offset = %v/%v", data["limit"], data["offset"])
	}
}

func TestParseBetPreview(t *testing.T) {
	h := NewBetHandler(&stubBets{}, testLogger())

	body := `{"market":"Will Bitcoin hit $110k before Feb 1?"}`
	req := httptest.NewRequest(http.MethodPost, "/api/bets/parse", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.ParseBet(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	data := env.Data.(map[string]any)
	if data["asset"] != "BTC" {
		t.Errorf("asset = %v", data["asset"])
	}
	if data["threshold"].(float64) != 110_000 {
		t.Errorf("threshold = %v", data["threshold"])
	}
}
