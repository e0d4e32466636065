package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults_AreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestLoad_MergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[market]
symbol   = "ETHUSDT"
interval = "5m"

[server]
port = 9100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "ETHUSDT", cfg.Market.Symbol)
	require.Equal(t, 5*time.Minute, cfg.Market.Interval.Duration)
	require.Equal(t, 9100, cfg.Server.Port)

	// Unspecified sections keep their defaults.
	require.Equal(t, 5, cfg.Market.DepthLevels)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[market]
symbol = "ETHUSDT"
`)

	t.Setenv("EXDASH_MARKET_SYMBOL", "SOLUSDT")
	t.Setenv("EXDASH_MARKET_BUCKET_SIZE", "0.5")
	t.Setenv("EXDASH_MARKET_INTERVAL", "15m")
	t.Setenv("EXDASH_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("EXDASH_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "SOLUSDT", cfg.Market.Symbol)
	require.Equal(t, 0.5, cfg.Market.BucketSize)
	require.Equal(t, 15*time.Minute, cfg.Market.Interval.Duration)
	require.Equal(t, "hunter2", cfg.Postgres.Password)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Market.Symbol = ""
	cfg.Market.DepthLevels = 0
	cfg.Market.CandleWindow = 0
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "log_level")
	require.Contains(t, err.Error(), "symbol")
	require.Contains(t, err.Error(), "depth_levels")
	require.Contains(t, err.Error(), "candle_window")
	require.Contains(t, err.Error(), "port")
}

func TestValidate_ArchiveRequiresPostgres(t *testing.T) {
	cfg := Defaults()
	cfg.S3.Enabled = true
	cfg.Postgres.Enabled = false

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "requires postgres")
}

func TestValidate_PostgresPool(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Enabled = true
	cfg.Postgres.PoolMinConns = 20
	cfg.Postgres.PoolMaxConns = 10

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "pool_min_conns")
}
