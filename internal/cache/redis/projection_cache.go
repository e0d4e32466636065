package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/exdash/exdash/internal/domain"
)

// projectionTTL bounds how long a stale projection outlives its writer. The
// feed refreshes every key on each mutation, so expiry only matters when the
// engine is down.
const projectionTTL = 10 * time.Minute

// ProjectionCache implements domain.ProjectionCache by storing each
// render-ready projection as a JSON string value.
//
// Key schema:
//
//	proj:depth:{symbol}   - DepthView
//	proj:trades:{symbol}  - []Trade, newest first
//	proj:candles:{symbol} - []Candle, ascending
type ProjectionCache struct {
	rdb *redis.Client
}

// NewProjectionCache creates a ProjectionCache backed by the given Client.
func NewProjectionCache(c *Client) *ProjectionCache {
	return &ProjectionCache{rdb: c.Underlying()}
}

func depthKey(symbol string) string   { return "proj:depth:" + symbol }
func tradesKey(symbol string) string  { return "proj:trades:" + symbol }
func candlesKey(symbol string) string { return "proj:candles:" + symbol }

// set marshals v and writes it under key with the projection TTL.
func (pc *ProjectionCache) set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal %s: %w", key, err)
	}
	if err := pc.rdb.Set(ctx, key, data, projectionTTL).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

// get reads key and unmarshals it into out. Missing keys map to
// domain.ErrNotFound.
func (pc *ProjectionCache) get(ctx context.Context, key string, out any) error {
	data, err := pc.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis: %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("redis: get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("redis: unmarshal %s: %w", key, err)
	}
	return nil
}

// SetDepth stores the latest padded depth view.
func (pc *ProjectionCache) SetDepth(ctx context.Context, view domain.DepthView) error {
	return pc.set(ctx, depthKey(view.Symbol), view)
}

// GetDepth returns the stored depth view for symbol.
func (pc *ProjectionCache) GetDepth(ctx context.Context, symbol string) (domain.DepthView, error) {
	var view domain.DepthView
	if err := pc.get(ctx, depthKey(symbol), &view); err != nil {
		return domain.DepthView{}, err
	}
	return view, nil
}

// SetTrades stores the latest trade buffer snapshot.
func (pc *ProjectionCache) SetTrades(ctx context.Context, symbol string, trades []domain.Trade) error {
	return pc.set(ctx, tradesKey(symbol), trades)
}

// GetTrades returns the stored trade buffer for symbol.
func (pc *ProjectionCache) GetTrades(ctx context.Context, symbol string) ([]domain.Trade, error) {
	var trades []domain.Trade
	if err := pc.get(ctx, tradesKey(symbol), &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// SetCandles stores the latest visible candle window.
func (pc *ProjectionCache) SetCandles(ctx context.Context, symbol string, candles []domain.Candle) error {
	return pc.set(ctx, candlesKey(symbol), candles)
}

// GetCandles returns the stored candle window for symbol.
func (pc *ProjectionCache) GetCandles(ctx context.Context, symbol string) ([]domain.Candle, error) {
	var candles []domain.Candle
	if err := pc.get(ctx, candlesKey(symbol), &candles); err != nil {
		return nil, err
	}
	return candles, nil
}

// Compile-time interface check.
var _ domain.ProjectionCache = (*ProjectionCache)(nil)
