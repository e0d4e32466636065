package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/exdash/exdash/internal/domain"
)

// Signal bus channels carrying projection updates, one per store.
const (
	ChannelDepth   = "depth"
	ChannelTrades  = "trades"
	ChannelCandles = "candles"
	ChannelOrders  = "orders"
)

// seedKlineLocked loads the finalized-candle history from the REST API. A
// failed seed is logged and left for the kline channel's history batch.
func (m *Manager) seedKlineLocked(ctx context.Context) {
	if m.api == nil {
		return
	}
	candles, err := m.api.KlineHistory(ctx, m.cfg.Symbol, m.cfg.Interval, m.cfg.HistoryLimit)
	if err != nil {
		m.logger.Warn("kline history seed failed", slog.String("error", err.Error()))
		return
	}
	m.candles.SeedHistory(candles)
}

// seedOrdersLocked loads the user's open orders from the REST API.
func (m *Manager) seedOrdersLocked(ctx context.Context) {
	if m.api == nil {
		return
	}
	orders, err := m.api.OpenOrders(ctx, m.cfg.Symbol)
	if err != nil {
		m.logger.Warn("open orders seed failed", slog.String("error", err.Error()))
		return
	}
	m.orders.Reset()
	for _, o := range orders {
		m.orders.Apply(domain.OrderEventCreated, o)
	}
}

// persistCandleLocked stores a finalized candle. Persistence failures never
// block the feed; the candle stays visible in the in-memory window.
func (m *Manager) persistCandleLocked(ctx context.Context, c domain.Candle) {
	if m.store == nil {
		return
	}
	if err := m.store.Insert(ctx, c); err != nil {
		m.logger.Warn("candle persist failed",
			slog.String("symbol", c.Symbol),
			slog.Time("interval_start", c.IntervalStart),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) publishAllLocked(ctx context.Context) {
	m.publishDepthLocked(ctx)
	m.publishTradesLocked(ctx)
	m.publishCandlesLocked(ctx)
	m.publishOrdersLocked(ctx)
}

func (m *Manager) publishDepthLocked(ctx context.Context) {
	view := m.book.Depth(m.cfg.DepthLevels)
	if m.cache != nil {
		if err := m.cache.SetDepth(ctx, view); err != nil {
			m.logger.Warn("depth cache write failed", slog.String("error", err.Error()))
		}
	}
	m.signalLocked(ctx, ChannelDepth, view)
}

func (m *Manager) publishTradesLocked(ctx context.Context) {
	trades := m.trades.Trades()
	if m.cache != nil {
		if err := m.cache.SetTrades(ctx, m.cfg.Symbol, trades); err != nil {
			m.logger.Warn("trades cache write failed", slog.String("error", err.Error()))
		}
	}
	m.signalLocked(ctx, ChannelTrades, trades)
}

func (m *Manager) publishCandlesLocked(ctx context.Context) {
	candles := m.candles.Visible(m.cfg.CandleWindow)
	if m.cache != nil {
		if err := m.cache.SetCandles(ctx, m.cfg.Symbol, candles); err != nil {
			m.logger.Warn("candles cache write failed", slog.String("error", err.Error()))
		}
	}
	m.signalLocked(ctx, ChannelCandles, candles)
}

func (m *Manager) publishOrdersLocked(ctx context.Context) {
	m.signalLocked(ctx, ChannelOrders, m.orders.Orders())
}

// signalLocked publishes a projection payload on the bus channel.
func (m *Manager) signalLocked(ctx context.Context, channel string, payload any) {
	if m.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		m.logger.Warn("projection marshal failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := m.bus.Publish(ctx, channel, data); err != nil {
		m.logger.Warn("projection publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
