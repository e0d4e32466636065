package domain

import "time"

// Side identifies which half of the book a level or trade belongs to.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Valid reports whether s is one of the two known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// PriceLevel is a single raw price+quantity entry as delivered by the
// upstream feed, before any display bucketing.
type PriceLevel struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Trade is a single trade print. Immutable once received.
type Trade struct {
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Side      Side      `json:"side"`
	TradeTime time.Time `json:"tradeTime"`
}

// Candle is one OHLC bar. IntervalStart is floor-aligned to the candle
// interval. Once finalized all four prices are immutable.
type Candle struct {
	Symbol        string    `json:"symbol"`
	IntervalStart time.Time `json:"intervalStart"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
}

// DepthRow is one rendered order book row. Rows padded in to keep the
// displayed table at a fixed height have Present == false and zero prices.
type DepthRow struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	Present  bool    `json:"present"`
}

// DepthView is a render-ready projection of the bucketed book: exactly N rows
// per side. Asks are ordered so the best ask is the last element (adjacent to
// the spread when stacked above the bids); bids are best-first.
type DepthView struct {
	Symbol     string     `json:"symbol"`
	BucketSize float64    `json:"bucketSize"`
	Asks       []DepthRow `json:"asks"`
	Bids       []DepthRow `json:"bids"`
}
