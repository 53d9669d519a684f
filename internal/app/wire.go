package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/polytrack/polytrack/internal/blob/s3"
	"github.com/polytrack/polytrack/internal/cache/redis"
	"github.com/polytrack/polytrack/internal/config"
	"github.com/polytrack/polytrack/internal/domain"
	"github.com/polytrack/polytrack/internal/notify"
	"github.com/polytrack/polytrack/internal/store/postgres"
)

// Dependencies bundles every infrastructure dependency the application
// modes need. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	// Persistence
	BetStore domain.BetStore

	// Redis
	KV          domain.KVCache
	RateLimiter domain.RateLimiter
	Usage       domain.UsageTracker
	SignalBus   domain.SignalBus

	// Blob storage, nil unless S3 archival is enabled
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// usageLimits maps provider names (as reported by each client's Name
// method) to the configured advisory daily budgets.
func usageLimits(cfg config.LimitsConfig) map[string]int64 {
	return map[string]int64{
		"coingecko":   cfg.CoinGeckoDaily,
		"binance":     cfg.BinanceDaily,
		"yahoo":       cfg.YahooDaily,
		"finnhub":     cfg.FinnhubDaily,
		"open-meteo":  cfg.OpenMeteoDaily,
		"openweather": cfg.OpenWeatherDaily,
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	deps.BetStore = postgres.NewBetStore(pgClient.Pool())

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.KV = redis.NewKV(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.Usage = redis.NewUsageTracker(redisClient, usageLimits(cfg.Limits))
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage for bet archival ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.BlobReader, deps.BetStore)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
