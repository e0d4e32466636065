package app

import (
	"context"
	"fmt"

	s3blob "github.com/exdash/exdash/internal/blob/s3"
	"github.com/exdash/exdash/internal/cache/redis"
	"github.com/exdash/exdash/internal/config"
	"github.com/exdash/exdash/internal/domain"
	"github.com/exdash/exdash/internal/platform/exchange"
	"github.com/exdash/exdash/internal/store/postgres"
)

// Dependencies bundles the infrastructure-level dependencies the application
// needs to operate. It is constructed by Wire and torn down by the returned
// cleanup function. Optional components (cache, bus, store, archiver) are nil
// when their backing service is disabled in the configuration.
type Dependencies struct {
	// Exchange REST client for order entry and history seeding.
	API *exchange.Client

	// Caches / signal bus (nil when Redis is disabled).
	Cache domain.ProjectionCache
	Bus   domain.SignalBus

	// Persistence (nil when Postgres is disabled).
	CandleStore domain.CandleStore

	// Blob archival (nil when S3 is disabled).
	Archiver *s3blob.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		API: exchange.NewClient(cfg.Exchange.APIHost),
	}

	// --- PostgreSQL (candle persistence) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.CandleStore = postgres.NewCandleStore(pgClient.Pool())
	}

	// --- Redis (projection cache + signal bus) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Cache = redis.NewProjectionCache(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
	}

	// --- S3 blob storage (candle archival; requires the candle store) ---
	if cfg.S3.Enabled && deps.CandleStore != nil {
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

		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.CandleStore)
	}

	return deps, cleanup, nil
}
