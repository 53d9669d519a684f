package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYTRACK_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// LoadOrDefaults behaves like Load but falls back to defaults plus env
// overrides when the file does not exist, so the server can start from
// environment alone.
func LoadOrDefaults(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		cfg := Defaults()
		_ = godotenv.Load()
		applyEnvOverrides(&cfg)
		return &cfg, nil
	}
	return Load(path)
}

// applyEnvOverrides reads well-known POLYTRACK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "POLYTRACK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYTRACK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYTRACK_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "POLYTRACK_SERVER_RATE_LIMIT")
	setInt(&cfg.Server.RateWindowSec, "POLYTRACK_SERVER_RATE_WINDOW_SEC")

	// ── Database ──
	setStr(&cfg.Database.DSN, "POLYTRACK_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "POLYTRACK_DATABASE_HOST")
	setInt(&cfg.Database.Port, "POLYTRACK_DATABASE_PORT")
	setStr(&cfg.Database.Database, "POLYTRACK_DATABASE_NAME")
	setStr(&cfg.Database.User, "POLYTRACK_DATABASE_USER")
	setStr(&cfg.Database.Password, "POLYTRACK_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "POLYTRACK_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "POLYTRACK_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "POLYTRACK_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "POLYTRACK_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYTRACK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYTRACK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYTRACK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYTRACK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYTRACK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYTRACK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYTRACK_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYTRACK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYTRACK_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYTRACK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYTRACK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYTRACK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYTRACK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYTRACK_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "POLYTRACK_S3_RETENTION_DAYS")
	setStr(&cfg.S3.ArchiveCron, "POLYTRACK_S3_ARCHIVE_CRON")

	// ── Providers ──
	setStr(&cfg.Providers.FinnhubKey, "POLYTRACK_FINNHUB_KEY")
	setStr(&cfg.Providers.FinnhubKey, "FINNHUB_API_KEY") // compatibility alias
	setStr(&cfg.Providers.OpenWeatherKey, "POLYTRACK_OPENWEATHER_KEY")
	setStr(&cfg.Providers.OpenWeatherKey, "OPENWEATHER_API_KEY") // compatibility alias

	// ── Cache ──
	setInt(&cfg.Cache.CryptoTTLSec, "POLYTRACK_CACHE_CRYPTO_TTL_SEC")
	setInt(&cfg.Cache.StockTTLSec, "POLYTRACK_CACHE_STOCK_TTL_SEC")
	setInt(&cfg.Cache.StockClosedSec, "POLYTRACK_CACHE_STOCK_CLOSED_TTL_SEC")
	setInt(&cfg.Cache.WeatherTTLSec, "POLYTRACK_CACHE_WEATHER_TTL_SEC")

	// ── Limits ──
	setInt64(&cfg.Limits.CoinGeckoDaily, "POLYTRACK_LIMITS_COINGECKO_DAILY")
	setInt64(&cfg.Limits.BinanceDaily, "POLYTRACK_LIMITS_BINANCE_DAILY")
	setInt64(&cfg.Limits.YahooDaily, "POLYTRACK_LIMITS_YAHOO_DAILY")
	setInt64(&cfg.Limits.FinnhubDaily, "POLYTRACK_LIMITS_FINNHUB_DAILY")
	setInt64(&cfg.Limits.OpenMeteoDaily, "POLYTRACK_LIMITS_OPENMETEO_DAILY")
	setInt64(&cfg.Limits.OpenWeatherDaily, "POLYTRACK_LIMITS_OPENWEATHER_DAILY")

	// ── Broadcast ──
	setBool(&cfg.Broadcast.Enabled, "POLYTRACK_BROADCAST_ENABLED")
	setDuration(&cfg.Broadcast.Interval, "POLYTRACK_BROADCAST_INTERVAL")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.GammaHost, "POLYTRACK_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.DataHost, "POLYTRACK_POLYMARKET_DATA_HOST")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYTRACK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYTRACK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYTRACK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYTRACK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYTRACK_MODE")
	setStr(&cfg.LogLevel, "POLYTRACK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
