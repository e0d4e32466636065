// Package app provides the top-level application lifecycle management for the
// dashboard engine. It wires together all dependencies (exchange clients,
// cache, persistence, blob archival), starts the feed manager, the WebSocket
// hub, the HTTP server, and the archival loop, and blocks until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/exdash/exdash/internal/config"
	"github.com/exdash/exdash/internal/feed"
	"github.com/exdash/exdash/internal/server"
	"github.com/exdash/exdash/internal/server/handler"
	"github.com/exdash/exdash/internal/server/ws"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run is the main entry point. It wires all dependencies, starts the feed,
// the hub, the server, and the archival loop, and blocks until the context is
// cancelled or a component fails. On return it runs all registered cleanup
// functions.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("symbol", a.cfg.Market.Symbol),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// Feed manager: the single-writer owner of all display state.
	manager := feed.NewManager(feed.Config{
		WSBaseURL:     a.cfg.Exchange.WSHost,
		Symbol:        a.cfg.Market.Symbol,
		UserID:        a.cfg.Exchange.UserID,
		BucketSize:    a.cfg.Market.BucketSize,
		Interval:      a.cfg.Market.Interval.Duration,
		DepthLevels:   a.cfg.Market.DepthLevels,
		TradeCapacity: a.cfg.Market.TradeCapacity,
		CandleWindow:  a.cfg.Market.CandleWindow,
		HistoryLimit:  a.cfg.Market.HistoryLimit,
	}, deps.API, nil, deps.Cache, deps.Bus, deps.CandleStore, a.logger)

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("app: start feed: %w", err)
	}
	a.closers = append(a.closers, manager.Close)

	g, ctx := errgroup.WithContext(ctx)

	// WebSocket hub: bridges bus projections to dashboard clients. Only
	// meaningful when a signal bus exists.
	var hub *ws.Hub
	if deps.Bus != nil {
		hub = ws.NewHub(deps.Bus, a.logger)
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	// HTTP API.
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Market: handler.NewMarketHandler(manager, a.logger),
		Orders: handler.NewOrderHandler(deps.API, manager, a.logger),
	}, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Candle archival loop.
	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps)
		})
	}

	return g.Wait()
}

// runArchiveLoop periodically moves aged candle rows to object storage.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.Info("archival loop started",
		slog.Duration("interval", interval),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			archived, err := deps.Archiver.ArchiveCandles(ctx, cutoff)
			if err != nil {
				a.logger.Error("candle archival failed", slog.String("error", err.Error()))
				continue
			}
			if archived > 0 {
				a.logger.Info("candles archived",
					slog.Int64("count", archived),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
