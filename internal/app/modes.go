package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polytrack/polytrack/internal/archive"
	"github.com/polytrack/polytrack/internal/broadcast"
	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/platform/binance"
	"github.com/polytrack/polytrack/internal/platform/coingecko"
	"github.com/polytrack/polytrack/internal/platform/finnhub"
	"github.com/polytrack/polytrack/internal/platform/openmeteo"
	"github.com/polytrack/polytrack/internal/platform/openweather"
	"github.com/polytrack/polytrack/internal/platform/polymarket"
	"github.com/polytrack/polytrack/internal/platform/yahoo"
	"github.com/polytrack/polytrack/internal/server"
	"github.com/polytrack/polytrack/internal/server/handler"
	"github.com/polytrack/polytrack/internal/server/ws"
	"github.com/polytrack/polytrack/internal/service"
)

// services groups the service layer built on top of the wired dependencies.
type services struct {
	bets      *service.BetService
	crypto    *service.CryptoService
	stocks    *service.StockService
	weather   *service.WeatherService
	markets   *service.MarketService
	wallet    *service.WalletSyncService
	analytics *service.AnalyticsService
}

// buildServices constructs the platform clients and the service layer.
// Provider order matters: the first source is primary, the rest are
// fallbacks tried in order.
func (a *App) buildServices(deps *Dependencies) *services {
	cfg := a.cfg

	cryptoSources := []domain.PriceSource{
		coingecko.New(""),
		binance.New(""),
	}

	stockSources := []domain.QuoteSource{
		yahoo.New("", ""),
	}
	if cfg.Providers.FinnhubKey != "" {
		stockSources = append(stockSources, finnhub.New("", cfg.Providers.FinnhubKey))
	}

	weatherSources := []domain.WeatherSource{
		openmeteo.New(""),
	}
	if cfg.Providers.OpenWeatherKey != "" {
		weatherSources = append(weatherSources, openweather.New("", cfg.Providers.OpenWeatherKey))
	}

	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	data := polymarket.NewDataClient(cfg.Polymarket.DataHost)

	crypto := service.NewCryptoService(
		cryptoSources, deps.KV, deps.Usage, a.logger,
		time.Duration(cfg.Cache.CryptoTTLSec)*time.Second,
	)
	stocks := service.NewStockService(
		stockSources, deps.KV, deps.Usage, a.logger,
		time.Duration(cfg.Cache.StockTTLSec)*time.Second,
		time.Duration(cfg.Cache.StockClosedSec)*time.Second,
	)
	weather := service.NewWeatherService(
		weatherSources, deps.KV, deps.Usage, a.logger,
		time.Duration(cfg.Cache.WeatherTTLSec)*time.Second,
	)

	return &services{
		bets:      service.NewBetService(deps.BetStore, crypto, stocks, weather, deps.Notifier, a.logger),
		crypto:    crypto,
		stocks:    stocks,
		weather:   weather,
		markets:   service.NewMarketService(gamma, deps.KV, a.logger),
		wallet:    service.NewWalletSyncService(deps.BetStore, data, deps.KV, a.logger),
		analytics: service.NewAnalyticsService(deps.BetStore, deps.Usage),
	}
}

// buildServer assembles the handlers and the HTTP server around the
// service layer. The archive handler is registered only when S3 archival
// is wired.
func (a *App) buildServer(deps *Dependencies, svcs *services, hub *ws.Hub, archiveRunner *archive.Runner) *server.Server {
	cfg := a.cfg

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(a.logger),
		Bets:       handler.NewBetHandler(svcs.bets, a.logger),
		Crypto:     handler.NewCryptoHandler(svcs.crypto, a.logger),
		Stocks:     handler.NewStockHandler(svcs.stocks, a.logger),
		Weather:    handler.NewWeatherHandler(svcs.weather, a.logger),
		Analytics:  handler.NewAnalyticsHandler(svcs.analytics, a.logger),
		Polymarket: handler.NewPolymarketHandler(svcs.markets, svcs.wallet, a.logger),
	}
	if deps.Archiver != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.Archiver, archiveRunner, a.logger)
	}

	return server.NewServer(server.Config{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKey:      cfg.Server.APIKey,
		RateLimit:   cfg.Server.RateLimit,
		RateWindow:  time.Duration(cfg.Server.RateWindowSec) * time.Second,
	}, handlers, hub, deps.RateLimiter, a.logger)
}

// ServerMode serves the HTTP and WebSocket API without background loops.
// A deployment runs one full instance and any number of server replicas;
// the signal bus fans updates out to all of them.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	return a.run(ctx, deps, false)
}

// FullMode serves the API and additionally runs the broadcast loop and,
// when S3 archival is enabled, the scheduled archive job.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	return a.run(ctx, deps, true)
}

func (a *App) run(ctx context.Context, deps *Dependencies, background bool) error {
	cfg := a.cfg
	svcs := a.buildServices(deps)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      cfg.Mode,
		StartedAt: time.Now().UTC(),
	})

	var archiveRunner *archive.Runner
	if deps.Archiver != nil {
		archiveRunner = archive.NewRunner(deps.Archiver, cfg.S3.RetentionDays, a.logger)
	}

	srv := a.buildServer(deps, svcs, hub, archiveRunner)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if background {
		if cfg.Broadcast.Enabled {
			broadcaster := broadcast.New(
				svcs.bets, svcs.crypto, svcs.stocks, svcs.weather,
				deps.SignalBus, deps.Notifier,
				cfg.Broadcast.Interval.Duration, a.logger,
			)
			g.Go(func() error {
				return broadcaster.Run(ctx)
			})
		} else {
			a.logger.Warn("app: broadcast loop disabled by config")
		}

		if archiveRunner != nil {
			cron := cfg.S3.ArchiveCron
			a.logger.Info("app: archive schedule active",
				slog.String("cron", cron),
				slog.Int("retention_days", cfg.S3.RetentionDays),
			)
			g.Go(func() error {
				return archiveRunner.RunCron(ctx, cron)
			})
		}
	}

	return g.Wait()
}
