// Package config defines the top-level configuration for the dashboard
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by EXDASH_* environment variables.
type Config struct {
	Exchange Exchange `toml:"exchange"`
	Market   Market   `toml:"market"`
	Postgres Postgres `toml:"postgres"`
	Redis    Redis    `toml:"redis"`
	S3       S3       `toml:"s3"`
	Archive  Archive  `toml:"archive"`
	Server   Server   `toml:"server"`
	LogLevel string   `toml:"log_level"`
}

// Exchange holds the upstream exchange endpoints and user identity.
type Exchange struct {
	APIHost string `toml:"api_host"`
	WSHost  string `toml:"ws_host"`
	UserID  string `toml:"user_id"`
}

// Market holds the initial display-state settings.
type Market struct {
	Symbol        string   `toml:"symbol"`
	BucketSize    float64  `toml:"bucket_size"`
	Interval      duration `toml:"interval"`
	DepthLevels   int      `toml:"depth_levels"`
	TradeCapacity int      `toml:"trade_capacity"`
	CandleWindow  int      `toml:"candle_window"`
	HistoryLimit  int      `toml:"history_limit"`
}

// Postgres holds PostgreSQL connection parameters. Leave Enabled false to
// run without candle persistence.
type Postgres struct {
	Enabled       bool   `toml:"enabled"`
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

// Redis holds Redis connection parameters. Leave Enabled false to run
// without the projection cache and signal bus (the WebSocket hub is then
// disabled as well).
type Redis struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	PoolSize int    `toml:"pool_size"`
}

// S3 holds S3-compatible object storage parameters for candle archival.
type S3 struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Archive holds the candle archival schedule.
type Archive struct {
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// Server holds HTTP server parameters.
type Server struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "1m" or "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. These
// match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Exchange: Exchange{
			APIHost: "http://localhost:8080/api/v1",
			WSHost:  "ws://localhost:8080/ws",
			UserID:  "demo",
		},
		Market: Market{
			Symbol:        "BTCUSDT",
			BucketSize:    1.0,
			Interval:      duration{time.Minute},
			DepthLevels:   5,
			TradeCapacity: 5,
			CandleWindow:  120,
			HistoryLimit:  500,
		},
		Postgres: Postgres{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "exdash",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: Redis{
			Enabled:  false,
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 20,
		},
		S3: S3{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "exdash-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Archive: Archive{
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Server: Server{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		LogLevel: "info",
	}
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Exchange
	if c.Exchange.APIHost == "" {
		errs = append(errs, "exchange: api_host must not be empty")
	}
	if c.Exchange.WSHost == "" {
		errs = append(errs, "exchange: ws_host must not be empty")
	}

	// Market
	if c.Market.Symbol == "" {
		errs = append(errs, "market: symbol must not be empty")
	}
	if c.Market.BucketSize < 0 {
		errs = append(errs, "market: bucket_size must not be negative")
	}
	if c.Market.Interval.Duration <= 0 {
		errs = append(errs, "market: interval must be positive")
	}
	if c.Market.DepthLevels < 1 {
		errs = append(errs, "market: depth_levels must be >= 1")
	}
	if c.Market.TradeCapacity < 1 {
		errs = append(errs, "market: trade_capacity must be >= 1")
	}
	if c.Market.CandleWindow < 1 {
		errs = append(errs, "market: candle_window must be >= 1")
	}
	if c.Market.HistoryLimit < 1 {
		errs = append(errs, "market: history_limit must be >= 1")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "s3: candle archival requires postgres to be enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
