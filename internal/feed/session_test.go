package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/exdash/exdash/internal/domain"
	"github.com/exdash/exdash/internal/platform/exchange"
)

type fakeStream struct {
	url    string
	closed bool
}

func (s *fakeStream) Connect(ctx context.Context) error { return nil }
func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeBus struct {
	published map[string]int
}

func (b *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if b.published == nil {
		b.published = make(map[string]int)
	}
	b.published[channel]++
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

type fakeCandleStore struct {
	inserted []domain.Candle
}

func (s *fakeCandleStore) Insert(ctx context.Context, c domain.Candle) error {
	s.inserted = append(s.inserted, c)
	return nil
}

func (s *fakeCandleStore) ListRecent(ctx context.Context, symbol string, limit int) ([]domain.Candle, error) {
	return nil, nil
}

func (s *fakeCandleStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Candle, error) {
	return nil, nil
}

func (s *fakeCandleStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func testManager(t *testing.T, bus domain.SignalBus, store domain.CandleStore) (*Manager, *[]*fakeStream) {
	t.Helper()

	streams := &[]*fakeStream{}
	dial := func(url string, handler exchange.MessageHandler) Stream {
		s := &fakeStream{url: url}
		*streams = append(*streams, s)
		return s
	}

	cfg := Config{
		WSBaseURL:     "ws://exchange.test/ws",
		Symbol:        "BTCUSDT",
		UserID:        "u1",
		BucketSize:    1.0,
		Interval:      time.Minute,
		DepthLevels:   5,
		TradeCapacity: 5,
		CandleWindow:  100,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(cfg, nil, dial, nil, bus, store, logger)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)
	return m, streams
}

func TestStart_OpensAllSessions(t *testing.T) {
	m, streams := testManager(t, nil, nil)

	require.Len(t, *streams, 4)
	for _, kind := range []StreamKind{StreamBook, StreamTrade, StreamKline, StreamOrder} {
		_, ok := m.SessionID(kind)
		require.True(t, ok, "no session for %s", kind)
	}

	// Trade table starts with placeholder rows at full height.
	trades := m.RecentTrades()
	require.Len(t, trades, 5)
	for _, tr := range trades {
		require.Zero(t, tr.Price)
	}
}

func TestHandleBookMessage_SnapshotThenDelta(t *testing.T) {
	m, _ := testManager(t, nil, nil)
	ctx := context.Background()
	id, _ := m.SessionID(StreamBook)

	snapshot := []byte(`{"bid":{"49999.95":1.2,"49999.2":0.3},"ask":{"50001.1":0.7}}`)
	require.NoError(t, m.HandleBookMessage(ctx, id, snapshot))

	view := m.Depth(5)
	require.Equal(t, 49999.0, view.Bids[0].Price)
	require.InDelta(t, 1.5, view.Bids[0].Quantity, 1e-12)
	require.Equal(t, 50002.0, view.Asks[4].Price)

	// Zero delta is a no-op.
	require.NoError(t, m.HandleBookMessage(ctx, id, []byte(`{"side":"BUY","price":49999.95,"unfilledQuantity":0}`)))
	require.InDelta(t, 1.5, m.Depth(5).Bids[0].Quantity, 1e-12)

	// Negative delta removes the bucket.
	require.NoError(t, m.HandleBookMessage(ctx, id, []byte(`{"side":"BUY","price":49999.95,"unfilledQuantity":-1.5}`)))
	require.False(t, m.Depth(5).Bids[0].Present)
}

func TestHandleBookMessage_MalformedDropped(t *testing.T) {
	m, _ := testManager(t, nil, nil)
	id, _ := m.SessionID(StreamBook)

	err := m.HandleBookMessage(context.Background(), id, []byte(`{"side":"HOLD","price":1,"unfilledQuantity":1}`))
	require.ErrorIs(t, err, domain.ErrUnknownSide)

	err = m.HandleBookMessage(context.Background(), id, []byte(`not json`))
	require.ErrorIs(t, err, domain.ErrMalformedMessage)
}

func TestHandleTradeMessage_SeedThenPush(t *testing.T) {
	m, _ := testManager(t, nil, nil)
	ctx := context.Background()
	id, _ := m.SessionID(StreamTrade)

	batch := []byte(`[
		{"price":100,"quantity":1,"side":"BUY","tradeTime":1700000000000},
		{"price":101,"quantity":2,"side":"SELL","tradeTime":1700000001000}
	]`)
	require.NoError(t, m.HandleTradeMessage(ctx, id, batch))

	trades := m.RecentTrades()
	require.Len(t, trades, 2)
	require.Equal(t, 101.0, trades[0].Price, "newest first")

	push := []byte(`{"price":102,"quantity":0.5,"side":"BUY","tradeTime":1700000002000}`)
	require.NoError(t, m.HandleTradeMessage(ctx, id, push))

	trades = m.RecentTrades()
	require.Equal(t, 102.0, trades[0].Price)
	require.Len(t, trades, 3)
}

func TestHandleKlineMessage_RollOverPersists(t *testing.T) {
	store := &fakeCandleStore{}
	m, _ := testManager(t, nil, store)
	ctx := context.Background()
	id, _ := m.SessionID(StreamKline)

	history := []byte(`[{"symbol":"BTCUSDT","time":1700000040000,"open":99,"high":100,"low":98,"close":100}]`)
	require.NoError(t, m.HandleKlineMessage(ctx, id, history))

	tick := []byte(`{"type":"current","symbol":"BTCUSDT","time":1700000100000,"open":100,"high":101,"low":100,"close":100.5}`)
	require.NoError(t, m.HandleKlineMessage(ctx, id, tick))
	require.Empty(t, store.inserted)

	// Next interval: the open candle rolls over and is persisted.
	next := []byte(`{"type":"trade","symbol":"BTCUSDT","time":1700000160000,"price":100.8}`)
	require.NoError(t, m.HandleKlineMessage(ctx, id, next))

	require.Len(t, store.inserted, 1)
	require.Equal(t, 100.5, store.inserted[0].Close)

	candles := m.VisibleCandles(10)
	last := candles[len(candles)-1]
	require.Equal(t, 100.5, last.Open, "new candle opens at prior close")
}

func TestHandleOrderMessage_TableLifecycle(t *testing.T) {
	m, _ := testManager(t, nil, nil)
	ctx := context.Background()
	id, _ := m.SessionID(StreamOrder)

	created := []byte(`{"eventType":"ORDER_CREATED","data":{"id":"o1","symbol":"BTCUSDT","price":100,"quantity":1,"side":"BUY","orderType":"LIMIT","status":"PENDING"}}`)
	require.NoError(t, m.HandleOrderMessage(ctx, id, created))
	require.Len(t, m.OpenOrders(), 1)

	completed := []byte(`{"eventType":"ORDER_COMPLETED","data":{"id":"o1"}}`)
	require.NoError(t, m.HandleOrderMessage(ctx, id, completed))
	require.Empty(t, m.OpenOrders())

	unknown := []byte(`{"eventType":"ORDER_TELEPORTED","data":{"id":"o2"}}`)
	require.ErrorIs(t, m.HandleOrderMessage(ctx, id, unknown), domain.ErrMalformedMessage)
}

func TestSetSymbol_TearsDownAndResets(t *testing.T) {
	m, streams := testManager(t, nil, nil)
	ctx := context.Background()

	bookID, _ := m.SessionID(StreamBook)
	snapshot := []byte(`{"bid":{"49999.5":1.0},"ask":{"50000.5":1.0}}`)
	require.NoError(t, m.HandleBookMessage(ctx, bookID, snapshot))
	require.True(t, m.Depth(5).Bids[0].Present)

	require.NoError(t, m.SetSymbol(ctx, "ETHUSDT"))

	// Old streams were closed and fresh sessions opened.
	for i := 0; i < 4; i++ {
		require.True(t, (*streams)[i].closed, "stream %d not closed", i)
	}
	require.Len(t, *streams, 8)

	// Stores reset to their empty presentations.
	view := m.Depth(5)
	require.Equal(t, "ETHUSDT", view.Symbol)
	for _, row := range append(view.Bids, view.Asks...) {
		require.False(t, row.Present)
	}
	require.Len(t, m.RecentTrades(), 5)
	require.Empty(t, m.VisibleCandles(0))
	require.Empty(t, m.OpenOrders())

	// A frame from the superseded session is dropped silently.
	err := m.HandleBookMessage(ctx, bookID, snapshot)
	require.ErrorIs(t, err, domain.ErrStaleSession)
	require.False(t, m.Depth(5).Bids[0].Present)
}

func TestSetBucketSize_ReopensBookOnly(t *testing.T) {
	m, streams := testManager(t, nil, nil)
	ctx := context.Background()

	tradeID, _ := m.SessionID(StreamTrade)
	require.NoError(t, m.SetBucketSize(ctx, 0.5))

	require.Len(t, *streams, 5)
	require.InDelta(t, 0.5, m.Depth(5).BucketSize, 1e-12)

	// Trade session survives the bucket-size change.
	stillTrade, _ := m.SessionID(StreamTrade)
	require.Equal(t, tradeID, stillTrade)
}

func TestVisibleCandles_ZeroWindowDefaultsBounded(t *testing.T) {
	dial := func(url string, handler exchange.MessageHandler) Stream {
		return &fakeStream{url: url}
	}
	cfg := Config{
		WSBaseURL:  "ws://exchange.test/ws",
		Symbol:     "BTCUSDT",
		UserID:     "u1",
		BucketSize: 1.0,
		Interval:   time.Minute,
		// CandleWindow deliberately left zero.
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(cfg, nil, dial, nil, nil, nil, logger)
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(m.Close)

	id, _ := m.SessionID(StreamKline)

	// Seed more history than the default window holds.
	bars := make([]string, 0, 150)
	for i := 0; i < 150; i++ {
		ts := int64(1700000000000) + int64(i)*60_000
		bars = append(bars, fmt.Sprintf(
			`{"symbol":"BTCUSDT","time":%d,"open":100,"high":101,"low":99,"close":100}`, ts))
	}
	history := []byte("[" + strings.Join(bars, ",") + "]")
	require.NoError(t, m.HandleKlineMessage(context.Background(), id, history))

	require.Len(t, m.VisibleCandles(0), 120, "zero window must fall back to the bounded default")
}

func TestPublish_SignalsBusPerMutation(t *testing.T) {
	bus := &fakeBus{}
	m, _ := testManager(t, bus, nil)
	ctx := context.Background()

	require.Positive(t, bus.published[ChannelDepth], "initial projections published on start")

	before := bus.published[ChannelDepth]
	id, _ := m.SessionID(StreamBook)
	require.NoError(t, m.HandleBookMessage(ctx, id, []byte(`{"side":"BUY","price":100.5,"unfilledQuantity":1}`)))
	require.Equal(t, before+1, bus.published[ChannelDepth])
}
