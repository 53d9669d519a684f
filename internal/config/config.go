// Package config defines the top-level configuration for the bet tracker
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYTRACK_* environment variables.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Providers  ProvidersConfig  `toml:"providers"`
	Cache      CacheConfig      `toml:"cache"`
	Limits     LimitsConfig     `toml:"limits"`
	Broadcast  BroadcastConfig  `toml:"broadcast"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port          int      `toml:"port"`
	CORSOrigins   []string `toml:"cors_origins"`
	APIKey        string   `toml:"api_key"`    // empty disables authentication
	RateLimit     int      `toml:"rate_limit"` // requests per window per client IP
	RateWindowSec int      `toml:"rate_window_sec"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for bet archival.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"` // resolved bets older than this get archived
	ArchiveCron    string `toml:"archive_cron"`   // 5-field cron schedule for archive runs
}

// ProvidersConfig holds upstream data-provider credentials. Providers with
// an empty key are simply not wired as sources.
type ProvidersConfig struct {
	FinnhubKey     string `toml:"finnhub_key"`
	OpenWeatherKey string `toml:"openweather_key"`
}

// CacheConfig holds per-domain logical freshness windows, in seconds.
type CacheConfig struct {
	CryptoTTLSec   int `toml:"crypto_ttl_sec"`
	StockTTLSec    int `toml:"stock_ttl_sec"` // during market hours; off-hours uses stock_closed_ttl_sec
	StockClosedSec int `toml:"stock_closed_ttl_sec"`
	WeatherTTLSec  int `toml:"weather_ttl_sec"`
}

// LimitsConfig holds advisory daily call budgets per provider. Zero means
// unlimited; budgets only annotate the api-usage report.
type LimitsConfig struct {
	CoinGeckoDaily   int64 `toml:"coingecko_daily"`
	BinanceDaily     int64 `toml:"binance_daily"`
	YahooDaily       int64 `toml:"yahoo_daily"`
	FinnhubDaily     int64 `toml:"finnhub_daily"`
	OpenMeteoDaily   int64 `toml:"openmeteo_daily"`
	OpenWeatherDaily int64 `toml:"openweather_daily"`
}

// BroadcastConfig holds live update loop parameters.
type BroadcastConfig struct {
	Enabled  bool     `toml:"enabled"`
	Interval duration `toml:"interval"`
}

// PolymarketConfig holds Polymarket API endpoints.
type PolymarketConfig struct {
	GammaHost string `toml:"gamma_host"`
	DataHost  string `toml:"data_host"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:          8000,
			CORSOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:     120,
			RateWindowSec: 60,
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "polytrack",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polytrack-archive",
			UseSSL:         false,
			ForcePathStyle: true,
			RetentionDays:  90,
			ArchiveCron:    "0 3 * * *",
		},
		Cache: CacheConfig{
			CryptoTTLSec:   60,
			StockTTLSec:    60,
			StockClosedSec: 3600,
			WeatherTTLSec:  300,
		},
		Limits: LimitsConfig{
			CoinGeckoDaily:   10_000,
			BinanceDaily:     100_000,
			YahooDaily:       10_000,
			FinnhubDaily:     86_400,
			OpenMeteoDaily:   10_000,
			OpenWeatherDaily: 1_000,
		},
		Broadcast: BroadcastConfig{
			Enabled:  true,
			Interval: duration{60 * time.Second},
		},
		Polymarket: PolymarketConfig{
			GammaHost: "https://gamma-api.polymarket.com",
			DataHost:  "https://data-api.polymarket.com",
		},
		Notify: NotifyConfig{
			Events: []string{"bet_flip", "bet_resolved", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "server: rate_limit must be >= 0")
	}
	if c.Server.RateLimit > 0 && c.Server.RateWindowSec <= 0 {
		errs = append(errs, "server: rate_window_sec must be > 0 when rate_limit is set")
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1 when enabled")
		}
		if strings.TrimSpace(c.S3.ArchiveCron) == "" {
			errs = append(errs, "s3: archive_cron must not be empty when enabled")
		}
	}

	// Cache
	if c.Cache.CryptoTTLSec < 1 {
		errs = append(errs, "cache: crypto_ttl_sec must be >= 1")
	}
	if c.Cache.StockTTLSec < 1 {
		errs = append(errs, "cache: stock_ttl_sec must be >= 1")
	}
	if c.Cache.StockClosedSec < c.Cache.StockTTLSec {
		errs = append(errs, "cache: stock_closed_ttl_sec must be >= stock_ttl_sec")
	}
	if c.Cache.WeatherTTLSec < 1 {
		errs = append(errs, "cache: weather_ttl_sec must be >= 1")
	}

	// Broadcast
	if c.Broadcast.Enabled && c.Broadcast.Interval.Duration < time.Second {
		errs = append(errs, "broadcast: interval must be >= 1s when enabled")
	}

	// Polymarket
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.DataHost == "" {
		errs = append(errs, "polymarket: data_host must not be empty")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
