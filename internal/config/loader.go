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
// built-in defaults, applies EXDASH_* environment variable overrides, and
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

// applyEnvOverrides reads well-known EXDASH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML.
func applyEnvOverrides(cfg *Config) {
	// ── Exchange ──
	setStr(&cfg.Exchange.APIHost, "EXDASH_EXCHANGE_API_HOST")
	setStr(&cfg.Exchange.WSHost, "EXDASH_EXCHANGE_WS_HOST")
	setStr(&cfg.Exchange.UserID, "EXDASH_EXCHANGE_USER_ID")

	// ── Market ──
	setStr(&cfg.Market.Symbol, "EXDASH_MARKET_SYMBOL")
	setFloat64(&cfg.Market.BucketSize, "EXDASH_MARKET_BUCKET_SIZE")
	setDuration(&cfg.Market.Interval, "EXDASH_MARKET_INTERVAL")
	setInt(&cfg.Market.DepthLevels, "EXDASH_MARKET_DEPTH_LEVELS")
	setInt(&cfg.Market.TradeCapacity, "EXDASH_MARKET_TRADE_CAPACITY")
	setInt(&cfg.Market.CandleWindow, "EXDASH_MARKET_CANDLE_WINDOW")
	setInt(&cfg.Market.HistoryLimit, "EXDASH_MARKET_HISTORY_LIMIT")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "EXDASH_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "EXDASH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "EXDASH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "EXDASH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "EXDASH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "EXDASH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "EXDASH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "EXDASH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "EXDASH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "EXDASH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "EXDASH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "EXDASH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "EXDASH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "EXDASH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "EXDASH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "EXDASH_REDIS_POOL_SIZE")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "EXDASH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "EXDASH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "EXDASH_S3_REGION")
	setStr(&cfg.S3.Bucket, "EXDASH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "EXDASH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "EXDASH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "EXDASH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "EXDASH_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "EXDASH_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "EXDASH_ARCHIVE_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "EXDASH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "EXDASH_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "EXDASH_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
