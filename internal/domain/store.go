package domain

import (
	"context"
	"io"
	"time"
)

// CandleStore persists finalized candles.
type CandleStore interface {
	// Insert stores a finalized candle. Re-inserting the same
	// (symbol, interval start) is a no-op.
	Insert(ctx context.Context, c Candle) error
	// ListRecent returns up to limit finalized candles for symbol, sorted
	// ascending by interval start.
	ListRecent(ctx context.Context, symbol string, limit int) ([]Candle, error)
	// ListBefore returns all candles with interval start strictly before the
	// given time, sorted ascending (for archiving).
	ListBefore(ctx context.Context, before time.Time) ([]Candle, error)
	// DeleteBefore removes candles older than the given time and returns the
	// number deleted.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// ProjectionCache stores the latest render-ready projections so readers other
// than the in-process HTTP handlers (or a restarted dashboard) can pick up
// current state without replaying the feed.
type ProjectionCache interface {
	SetDepth(ctx context.Context, view DepthView) error
	GetDepth(ctx context.Context, symbol string) (DepthView, error)
	SetTrades(ctx context.Context, symbol string, trades []Trade) error
	GetTrades(ctx context.Context, symbol string) ([]Trade, error)
	SetCandles(ctx context.Context, symbol string, candles []Candle) error
	GetCandles(ctx context.Context, symbol string) ([]Candle, error)
}

// SignalBus provides pub/sub fan-out of projection updates.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
