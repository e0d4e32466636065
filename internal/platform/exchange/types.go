package exchange

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/exdash/exdash/internal/domain"
)

// --------------------------------------------------------------------------
// Order book channel DTOs
// --------------------------------------------------------------------------

// BookSnapshotMessage is a full order book image. Each side is a map of
// price (as a JSON object key, hence a string) to unfilled quantity.
type BookSnapshotMessage struct {
	Bid map[string]float64 `json:"bid"`
	Ask map[string]float64 `json:"ask"`
}

// DepthDeltaMessage is an incremental change to a single raw price level.
// UnfilledQuantity is the net quantity change, which may be negative.
type DepthDeltaMessage struct {
	Side             string  `json:"side"`
	Price            float64 `json:"price"`
	UnfilledQuantity float64 `json:"unfilledQuantity"`
}

// IsBookSnapshot reports whether a raw book-channel frame carries a full
// snapshot rather than a delta. Snapshots are recognized structurally by
// their "bid"/"ask" keys.
func IsBookSnapshot(raw []byte) bool {
	var probe struct {
		Bid json.RawMessage `json:"bid"`
		Ask json.RawMessage `json:"ask"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return false
	}
	return probe.Bid != nil || probe.Ask != nil
}

// Levels converts one side of the snapshot to raw price levels. Entries with
// unparseable price keys are dropped. Output is sorted by price ascending so
// downstream processing is deterministic.
func sideLevels(side map[string]float64) []domain.PriceLevel {
	levels := make([]domain.PriceLevel, 0, len(side))
	for key, qty := range side {
		price, err := strconv.ParseFloat(key, 64)
		if err != nil {
			continue
		}
		levels = append(levels, domain.PriceLevel{Price: price, Quantity: qty})
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Price < levels[j].Price })
	return levels
}

// BidLevels returns the snapshot's bid side as raw price levels.
func (m *BookSnapshotMessage) BidLevels() []domain.PriceLevel { return sideLevels(m.Bid) }

// AskLevels returns the snapshot's ask side as raw price levels.
func (m *BookSnapshotMessage) AskLevels() []domain.PriceLevel { return sideLevels(m.Ask) }

// ToDomain converts the delta to a side plus raw level. It fails on an
// unknown side string.
func (m *DepthDeltaMessage) ToDomain() (domain.Side, domain.PriceLevel, error) {
	side := domain.Side(m.Side)
	if !side.Valid() {
		return "", domain.PriceLevel{}, fmt.Errorf("exchange: %w: %q", domain.ErrUnknownSide, m.Side)
	}
	return side, domain.PriceLevel{Price: m.Price, Quantity: m.UnfilledQuantity}, nil
}

// --------------------------------------------------------------------------
// Trade channel DTOs
// --------------------------------------------------------------------------

// TradeMessage is a single trade print. TradeTime is epoch milliseconds.
type TradeMessage struct {
	Price     float64 `json:"price"`
	Quantity  float64 `json:"quantity"`
	Side      string  `json:"side"`
	TradeTime int64   `json:"tradeTime"`
}

// ToDomain converts the print to a domain trade.
func (m *TradeMessage) ToDomain() domain.Trade {
	return domain.Trade{
		Price:     m.Price,
		Quantity:  m.Quantity,
		Side:      domain.Side(m.Side),
		TradeTime: time.UnixMilli(m.TradeTime),
	}
}

// --------------------------------------------------------------------------
// Kline channel DTOs
// --------------------------------------------------------------------------

// KlineBar is one history bar from the kline seed batch. Time is the bar's
// interval start in epoch milliseconds.
type KlineBar struct {
	Symbol string  `json:"symbol"`
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
}

// ToDomain converts a history bar to a finalized candle.
func (b *KlineBar) ToDomain() domain.Candle {
	return domain.Candle{
		Symbol:        b.Symbol,
		IntervalStart: time.UnixMilli(b.Time).UTC(),
		Open:          b.Open,
		High:          b.High,
		Low:           b.Low,
		Close:         b.Close,
	}
}

// Kline tick type discriminators.
const (
	KlineTickCurrent = "current"
	KlineTickTrade   = "trade"
)

// KlineTickMessage is an incremental kline-channel push: either the
// in-progress bar's running OHLC ("current", open may be omitted) or a bare
// price print ("trade"). Time is epoch milliseconds.
type KlineTickMessage struct {
	Type   string   `json:"type"`
	Symbol string   `json:"symbol"`
	Time   int64    `json:"time"`
	Open   *float64 `json:"open,omitempty"`
	High   float64  `json:"high,omitempty"`
	Low    float64  `json:"low,omitempty"`
	Close  float64  `json:"close,omitempty"`
	Price  float64  `json:"price,omitempty"`
}

// --------------------------------------------------------------------------
// User order channel DTOs
// --------------------------------------------------------------------------

// UserOrderMessage is a push notification about one of the user's orders.
type UserOrderMessage struct {
	EventType string       `json:"eventType"`
	Data      domain.Order `json:"data"`
}

// Event validates and returns the typed event kind.
func (m *UserOrderMessage) Event() (domain.OrderEventType, error) {
	switch ev := domain.OrderEventType(m.EventType); ev {
	case domain.OrderEventCreated, domain.OrderEventUpdated, domain.OrderEventCompleted:
		return ev, nil
	default:
		return "", fmt.Errorf("exchange: %w: unknown order event %q", domain.ErrMalformedMessage, m.EventType)
	}
}

// --------------------------------------------------------------------------
// REST DTOs
// --------------------------------------------------------------------------

// APIOrderResult is the exchange's response to submit/modify/cancel calls.
type APIOrderResult struct {
	Success  bool         `json:"success"`
	ErrorMsg string       `json:"errorMsg,omitempty"`
	Order    domain.Order `json:"order,omitempty"`
}
