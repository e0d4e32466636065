package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/exdash/exdash/internal/domain"
	"github.com/exdash/exdash/internal/market"
	"github.com/exdash/exdash/internal/platform/exchange"
)

// StreamKind identifies one exchange push channel.
type StreamKind string

const (
	StreamBook  StreamKind = "depth"
	StreamTrade StreamKind = "trade"
	StreamKline StreamKind = "kline"
	StreamOrder StreamKind = "order"
)

// Stream is the transport behind one channel session.
type Stream interface {
	Connect(ctx context.Context) error
	Close() error
}

// Dialer opens a Stream that delivers every raw frame to handler.
type Dialer func(url string, handler exchange.MessageHandler) Stream

// session binds one live stream to the ID that guards it. Frames tagged with
// a superseded ID are dropped without processing.
type session struct {
	id     uuid.UUID
	kind   StreamKind
	stream Stream
}

// Config holds the stream-facing settings of a Manager.
type Config struct {
	WSBaseURL     string
	Symbol        string
	UserID        string
	BucketSize    float64
	Interval      time.Duration
	DepthLevels   int
	TradeCapacity int
	CandleWindow  int
	HistoryLimit  int
}

// Manager owns the display-state stores and one session per stream kind. All
// message handling and reconfiguration is serialized behind a single mutex,
// so every handler runs to completion before the next one starts.
type Manager struct {
	mu  sync.Mutex
	cfg Config

	book    *market.Book
	trades  *market.TradeFeed
	candles *market.CandleSeries
	orders  *market.OrderTable

	sessions map[StreamKind]*session
	dial     Dialer

	api    *exchange.Client
	cache  domain.ProjectionCache
	bus    domain.SignalBus
	store  domain.CandleStore
	logger *slog.Logger
}

// NewManager creates a Manager with empty stores. api, cache, bus, and store
// may each be nil; the corresponding seeding/publishing steps are skipped.
// A nil dial uses the real WebSocket transport.
func NewManager(cfg Config, api *exchange.Client, dial Dialer, cache domain.ProjectionCache, bus domain.SignalBus, store domain.CandleStore, logger *slog.Logger) *Manager {
	if cfg.DepthLevels <= 0 {
		cfg.DepthLevels = 5
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 500
	}
	if cfg.CandleWindow <= 0 {
		cfg.CandleWindow = 120
	}
	if dial == nil {
		dial = func(url string, handler exchange.MessageHandler) Stream {
			return exchange.NewStreamClient(url, handler)
		}
	}
	return &Manager{
		cfg:      cfg,
		book:     market.NewBook(cfg.Symbol, cfg.BucketSize),
		trades:   market.NewTradeFeed(cfg.TradeCapacity),
		candles:  market.NewCandleSeries(cfg.Symbol, cfg.Interval),
		orders:   market.NewOrderTable(),
		sessions: make(map[StreamKind]*session),
		dial:     dial,
		api:      api,
		cache:    cache,
		bus:      bus,
		store:    store,
		logger:   logger.With(slog.String("component", "feed_manager")),
	}
}

// Start opens all four channel sessions, seeds the stores that have REST
// seed sources, and publishes the initial projections.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.trades.Seed(nil)

	for _, kind := range []StreamKind{StreamBook, StreamTrade, StreamKline, StreamOrder} {
		if err := m.openSessionLocked(ctx, kind); err != nil {
			m.closeAllLocked()
			return fmt.Errorf("feed: open %s session: %w", kind, err)
		}
	}

	m.seedKlineLocked(ctx)
	m.seedOrdersLocked(ctx)
	m.publishAllLocked(ctx)

	m.logger.Info("feed started",
		slog.String("symbol", m.cfg.Symbol),
		slog.Float64("bucket_size", m.cfg.BucketSize),
		slog.Duration("interval", m.cfg.Interval),
	)
	return nil
}

// Close tears down all sessions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeAllLocked()
}

// --------------------------------------------------------------------------
// Reconfiguration
// --------------------------------------------------------------------------

// SetSymbol switches the active symbol: every session is torn down, every
// store is reset, and fresh sessions are opened. In-flight frames from the
// old sessions carry superseded IDs and are dropped.
func (m *Manager) SetSymbol(ctx context.Context, symbol string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if symbol == m.cfg.Symbol {
		return nil
	}
	m.cfg.Symbol = symbol

	m.book.Reset(symbol, m.cfg.BucketSize)
	m.trades.Reset()
	m.trades.Seed(nil)
	m.candles.Reset(symbol, m.cfg.Interval)
	m.orders.Reset()

	for _, kind := range []StreamKind{StreamBook, StreamTrade, StreamKline, StreamOrder} {
		if err := m.reopenSessionLocked(ctx, kind); err != nil {
			return fmt.Errorf("feed: switch symbol: %w", err)
		}
	}

	m.seedKlineLocked(ctx)
	m.seedOrdersLocked(ctx)
	m.publishAllLocked(ctx)

	m.logger.Info("symbol switched", slog.String("symbol", symbol))
	return nil
}

// SetBucketSize changes the book's display bucket size, resetting the book
// and reopening its session.
func (m *Manager) SetBucketSize(ctx context.Context, size float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if size == m.cfg.BucketSize {
		return nil
	}
	m.cfg.BucketSize = size

	m.book.Reset(m.cfg.Symbol, size)
	if err := m.reopenSessionLocked(ctx, StreamBook); err != nil {
		return fmt.Errorf("feed: change bucket size: %w", err)
	}
	m.publishDepthLocked(ctx)

	m.logger.Info("bucket size changed", slog.Float64("bucket_size", size))
	return nil
}

// SetInterval changes the candle interval, resetting the series and
// reopening the kline session.
func (m *Manager) SetInterval(ctx context.Context, interval time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if interval == m.cfg.Interval {
		return nil
	}
	m.cfg.Interval = interval

	m.candles.Reset(m.cfg.Symbol, interval)
	if err := m.reopenSessionLocked(ctx, StreamKline); err != nil {
		return fmt.Errorf("feed: change interval: %w", err)
	}
	m.seedKlineLocked(ctx)
	m.publishCandlesLocked(ctx)

	m.logger.Info("interval changed", slog.Duration("interval", interval))
	return nil
}

// --------------------------------------------------------------------------
// Read accessors
// --------------------------------------------------------------------------

// Symbol returns the active symbol.
func (m *Manager) Symbol() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.Symbol
}

// Depth returns the padded top-n view of the bucketed book.
func (m *Manager) Depth(n int) domain.DepthView {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 {
		n = m.cfg.DepthLevels
	}
	return m.book.Depth(n)
}

// RecentTrades returns the newest-first trade buffer.
func (m *Manager) RecentTrades() []domain.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trades.Trades()
}

// VisibleCandles returns the most recent count candles, open candle included.
func (m *Manager) VisibleCandles(count int) []domain.Candle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if count <= 0 {
		count = m.cfg.CandleWindow
	}
	return m.candles.Visible(count)
}

// OpenOrders returns the user's open-order table.
func (m *Manager) OpenOrders() []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders.Orders()
}

// SessionID returns the live session ID for a stream kind, for tagging
// handler calls in tests.
func (m *Manager) SessionID(kind StreamKind) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[kind]
	if !ok {
		return uuid.UUID{}, false
	}
	return s.id, true
}

// --------------------------------------------------------------------------
// Message handling
// --------------------------------------------------------------------------

// HandleBookMessage folds one book-channel frame into the book. Snapshots
// are recognized structurally and replace the side wholesale; anything else
// is treated as a delta.
func (m *Manager) HandleBookMessage(ctx context.Context, sessionID uuid.UUID, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSessionLocked(StreamBook, sessionID); err != nil {
		return err
	}

	if exchange.IsBookSnapshot(raw) {
		var snap exchange.BookSnapshotMessage
		if err := json.Unmarshal(raw, &snap); err != nil {
			return fmt.Errorf("feed: book snapshot: %w: %v", domain.ErrMalformedMessage, err)
		}
		m.book.ApplySnapshot(domain.SideBuy, snap.BidLevels())
		m.book.ApplySnapshot(domain.SideSell, snap.AskLevels())
	} else {
		var delta exchange.DepthDeltaMessage
		if err := json.Unmarshal(raw, &delta); err != nil {
			return fmt.Errorf("feed: book delta: %w: %v", domain.ErrMalformedMessage, err)
		}
		side, level, err := delta.ToDomain()
		if err != nil {
			return fmt.Errorf("feed: book delta: %w", err)
		}
		m.book.ApplyDelta(side, level.Price, level.Quantity)
	}

	m.publishDepthLocked(ctx)
	return nil
}

// HandleTradeMessage folds one trade-channel frame into the trade buffer. An
// array frame is the seed batch; an object frame is a single print.
func (m *Manager) HandleTradeMessage(ctx context.Context, sessionID uuid.UUID, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSessionLocked(StreamTrade, sessionID); err != nil {
		return err
	}

	if isJSONArray(raw) {
		var batch []exchange.TradeMessage
		if err := json.Unmarshal(raw, &batch); err != nil {
			return fmt.Errorf("feed: trade batch: %w: %v", domain.ErrMalformedMessage, err)
		}
		seed := make([]domain.Trade, 0, len(batch))
		for i := range batch {
			seed = append(seed, batch[i].ToDomain())
		}
		m.trades.Seed(seed)
	} else {
		var msg exchange.TradeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return fmt.Errorf("feed: trade: %w: %v", domain.ErrMalformedMessage, err)
		}
		m.trades.Push(msg.ToDomain())
	}

	m.publishTradesLocked(ctx)
	return nil
}

// HandleKlineMessage folds one kline-channel frame into the candle series.
// An array frame seeds history; object frames are current-bar or trade
// ticks. Finalized candles produced by a roll-over are persisted.
func (m *Manager) HandleKlineMessage(ctx context.Context, sessionID uuid.UUID, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSessionLocked(StreamKline, sessionID); err != nil {
		return err
	}

	if isJSONArray(raw) {
		var bars []exchange.KlineBar
		if err := json.Unmarshal(raw, &bars); err != nil {
			return fmt.Errorf("feed: kline history: %w: %v", domain.ErrMalformedMessage, err)
		}
		candles := make([]domain.Candle, 0, len(bars))
		for i := range bars {
			candles = append(candles, bars[i].ToDomain())
		}
		m.candles.SeedHistory(candles)
		m.publishCandlesLocked(ctx)
		return nil
	}

	var tick exchange.KlineTickMessage
	if err := json.Unmarshal(raw, &tick); err != nil {
		return fmt.Errorf("feed: kline tick: %w: %v", domain.ErrMalformedMessage, err)
	}

	switch tick.Type {
	case exchange.KlineTickCurrent:
		t := market.Tick{
			Time:  time.UnixMilli(tick.Time).UTC(),
			High:  tick.High,
			Low:   tick.Low,
			Close: tick.Close,
		}
		if tick.Open != nil {
			t.Open = *tick.Open
			t.HasOpen = true
		}
		if finalized, rolled := m.candles.ApplyTick(t); rolled {
			m.persistCandleLocked(ctx, finalized)
		}
	case exchange.KlineTickTrade:
		if finalized, rolled := m.candles.ApplyTrade(time.UnixMilli(tick.Time).UTC(), tick.Price); rolled {
			m.persistCandleLocked(ctx, finalized)
		}
	default:
		return fmt.Errorf("feed: kline tick: %w: unknown type %q", domain.ErrMalformedMessage, tick.Type)
	}

	m.publishCandlesLocked(ctx)
	return nil
}

// HandleOrderMessage folds one user-order push into the open-order table.
func (m *Manager) HandleOrderMessage(ctx context.Context, sessionID uuid.UUID, raw []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkSessionLocked(StreamOrder, sessionID); err != nil {
		return err
	}

	var msg exchange.UserOrderMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("feed: user order: %w: %v", domain.ErrMalformedMessage, err)
	}
	event, err := msg.Event()
	if err != nil {
		return fmt.Errorf("feed: user order: %w", err)
	}
	m.orders.Apply(event, msg.Data)

	m.publishOrdersLocked(ctx)
	return nil
}

// --------------------------------------------------------------------------
// Session plumbing
// --------------------------------------------------------------------------

// checkSessionLocked drops frames whose session ID has been superseded.
func (m *Manager) checkSessionLocked(kind StreamKind, sessionID uuid.UUID) error {
	current, ok := m.sessions[kind]
	if !ok || current.id != sessionID {
		return fmt.Errorf("feed: %s: %w", kind, domain.ErrStaleSession)
	}
	return nil
}

// streamURL builds the endpoint for a stream kind from the current config.
func (m *Manager) streamURL(kind StreamKind) string {
	base := m.cfg.WSBaseURL
	switch kind {
	case StreamBook:
		return fmt.Sprintf("%s/depth/%s?bucketSize=%s", base, url.PathEscape(m.cfg.Symbol),
			strconv.FormatFloat(m.cfg.BucketSize, 'f', -1, 64))
	case StreamTrade:
		return fmt.Sprintf("%s/trade/%s", base, url.PathEscape(m.cfg.Symbol))
	case StreamKline:
		return fmt.Sprintf("%s/kline/%s?interval=%d", base, url.PathEscape(m.cfg.Symbol),
			int64(m.cfg.Interval/time.Second))
	case StreamOrder:
		return fmt.Sprintf("%s/order/%s", base, url.PathEscape(m.cfg.UserID))
	}
	return base
}

// openSessionLocked creates a fresh session for kind and connects its
// stream. Frames are tagged with the session ID at registration time, so a
// later reopen invalidates them wholesale.
func (m *Manager) openSessionLocked(ctx context.Context, kind StreamKind) error {
	id := uuid.New()
	handler := m.frameHandler(kind, id)
	stream := m.dial(m.streamURL(kind), handler)

	if err := stream.Connect(ctx); err != nil {
		return err
	}

	m.sessions[kind] = &session{id: id, kind: kind, stream: stream}
	m.logger.Debug("session opened",
		slog.String("kind", string(kind)),
		slog.String("session_id", id.String()),
	)
	return nil
}

// reopenSessionLocked closes the current session for kind, if any, and opens
// a new one.
func (m *Manager) reopenSessionLocked(ctx context.Context, kind StreamKind) error {
	if old, ok := m.sessions[kind]; ok {
		_ = old.stream.Close()
		delete(m.sessions, kind)
	}
	return m.openSessionLocked(ctx, kind)
}

// closeAllLocked tears down every live session.
func (m *Manager) closeAllLocked() {
	for kind, s := range m.sessions {
		_ = s.stream.Close()
		delete(m.sessions, kind)
	}
}

// frameHandler adapts a raw stream frame to the typed handler for kind,
// tagged with the session ID in force when the session was opened. Stale and
// malformed frames are dropped here.
func (m *Manager) frameHandler(kind StreamKind, id uuid.UUID) exchange.MessageHandler {
	return func(raw []byte) {
		ctx := context.Background()

		var err error
		switch kind {
		case StreamBook:
			err = m.HandleBookMessage(ctx, id, raw)
		case StreamTrade:
			err = m.HandleTradeMessage(ctx, id, raw)
		case StreamKline:
			err = m.HandleKlineMessage(ctx, id, raw)
		case StreamOrder:
			err = m.HandleOrderMessage(ctx, id, raw)
		}

		switch {
		case err == nil:
		case errors.Is(err, domain.ErrStaleSession):
			m.logger.Debug("stale frame dropped", slog.String("kind", string(kind)))
		default:
			m.logger.Warn("frame dropped",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
		}
	}
}

// isJSONArray reports whether the first non-space byte of raw opens an
// array, distinguishing seed batches from incremental pushes.
func isJSONArray(raw []byte) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}
