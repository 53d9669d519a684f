// Package server exposes the HTTP and WebSocket API over the tracker's
// services.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/server/handler"
	"github.com/polytrack/polytrack/internal/server/middleware"
	"github.com/polytrack/polytrack/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
	RateLimit   int    // requests per window per client IP; 0 disables
	RateWindow  time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Archives may be nil when S3 archival is disabled.
type Handlers struct {
	Health     *handler.HealthHandler
	Bets       *handler.BetHandler
	Crypto     *handler.CryptoHandler
	Stocks     *handler.StockHandler
	Weather    *handler.WeatherHandler
	Analytics  *handler.AnalyticsHandler
	Polymarket *handler.PolymarketHandler
	Archives   *handler.ArchiveHandler
}

// Server is the HTTP + WebSocket API server for the bet tracker.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, rate limiting, auth) and attaches
// the WebSocket hub. The limiter may be nil to disable rate limiting.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Bet endpoints.
	mux.HandleFunc("GET /api/bets", handlers.Bets.ListBets)
	mux.HandleFunc("POST /api/bets", handlers.Bets.CreateBet)
	mux.HandleFunc("POST /api/bets/parse", handlers.Bets.ParseBet)
	mux.HandleFunc("GET /api/bets/status", handlers.Bets.BetStatuses)
	mux.HandleFunc("GET /api/bets/{id}", handlers.Bets.GetBet)
	mux.HandleFunc("PUT /api/bets/{id}", handlers.Bets.UpdateBet)
	mux.HandleFunc("DELETE /api/bets/{id}", handlers.Bets.DeleteBet)
	mux.HandleFunc("POST /api/bets/{id}/resolve", handlers.Bets.ResolveBet)
	mux.HandleFunc("GET /api/bets/{id}/status", handlers.Bets.BetStatus)

	// Crypto endpoints.
	mux.HandleFunc("GET /api/crypto/price/{symbol}", handlers.Crypto.Price)
	mux.HandleFunc("GET /api/crypto/prices", handlers.Crypto.Prices)
	mux.HandleFunc("GET /api/crypto/history/{symbol}", handlers.Crypto.History)
	mux.HandleFunc("GET /api/crypto/symbols", handlers.Crypto.Symbols)

	// Stock endpoints.
	mux.HandleFunc("GET /api/stocks/quote/{symbol}", handlers.Stocks.Quote)
	mux.HandleFunc("GET /api/stocks/quotes", handlers.Stocks.Quotes)
	mux.HandleFunc("GET /api/stocks/history/{symbol}", handlers.Stocks.History)
	mux.HandleFunc("GET /api/stocks/market-status", handlers.Stocks.MarketStatus)
	mux.HandleFunc("GET /api/stocks/symbols", handlers.Stocks.Symbols)

	// Weather endpoints.
	mux.HandleFunc("GET /api/weather/current/{city}", handlers.Weather.Current)
	mux.HandleFunc("GET /api/weather/forecast/{city}", handlers.Weather.Forecast)
	mux.HandleFunc("GET /api/weather/cities", handlers.Weather.Cities)

	// Analytics endpoints.
	mux.HandleFunc("GET /api/analytics/portfolio", handlers.Analytics.Portfolio)
	mux.HandleFunc("GET /api/analytics/performance", handlers.Analytics.Performance)
	mux.HandleFunc("GET /api/analytics/by-type", handlers.Analytics.ByType)
	mux.HandleFunc("GET /api/analytics/api-usage", handlers.Analytics.APIUsage)

	// Polymarket endpoints.
	mux.HandleFunc("GET /api/polymarket/search", handlers.Polymarket.Search)
	mux.HandleFunc("GET /api/polymarket/market/{id}", handlers.Polymarket.GetMarket)
	mux.HandleFunc("POST /api/polymarket/from-url", handlers.Polymarket.FromURL)
	mux.HandleFunc("POST /api/polymarket/wallet/sync", handlers.Polymarket.SyncWallet)

	// Archive endpoints, present only when S3 archival is enabled.
	if handlers.Archives != nil {
		mux.HandleFunc("GET /api/archives", handlers.Archives.ListArchives)
		mux.HandleFunc("POST /api/archives/run", handlers.Archives.TriggerArchive)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	// Apply auth middleware (skips if APIKey is empty).
	h = middleware.Auth(cfg.APIKey)(h)

	// Apply per-client rate limiting.
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}

	// Apply request logging middleware.
	h = middleware.Logging(logger)(h)

	// Apply CORS middleware.
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
