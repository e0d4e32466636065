// Package market holds the in-memory display state for one trading symbol:
// the bucketed order book, the recent-trade feed, the candle series, and the
// open-order table. Stores are plain single-owner structs; serialization is
// the session manager's job.
package market

import (
	"math"

	"github.com/exdash/exdash/internal/domain"
)

// tickFactor is the fixed-point scale for prices: one tick is 1e-8 of the
// quote currency. Keying buckets by integer ticks instead of float prices
// makes floor/ceil bucketing exact at bucket boundaries, so no epsilon nudge
// is needed before rounding.
const tickFactor = 100_000_000

// Ticks is a price expressed in fixed-point ticks.
type Ticks int64

// ToTicks converts a raw float price to ticks, rounding to the nearest tick.
func ToTicks(price float64) Ticks {
	return Ticks(math.Round(price * tickFactor))
}

// Price converts ticks back to a float price.
func (t Ticks) Price() float64 {
	return float64(t) / tickFactor
}

// BucketPrice quantizes a raw price into its display bucket. Bids round down
// and asks round up, so a bucket always aggregates all interest at that price
// or worse for the maker and no raw price falls between two buckets.
func BucketPrice(raw float64, bucketSize Ticks, side domain.Side) Ticks {
	if bucketSize <= 0 {
		return ToTicks(raw)
	}
	t := int64(ToTicks(raw))
	b := int64(bucketSize)

	q := t / b
	r := t % b
	if r != 0 {
		switch side {
		case domain.SideBuy:
			if t < 0 {
				q--
			}
		case domain.SideSell:
			if t > 0 {
				q++
			}
		}
	}
	return Ticks(q * b)
}
