package market

import (
	"math"
	"sort"

	"github.com/exdash/exdash/internal/domain"
)

// minQuantity is the smallest bucket total worth keeping. Totals at or below
// this (or negative) delete the bucket rather than leaving a zero row.
const minQuantity = 1e-8

// Book is the price-bucketed order book for a single symbol. Each side maps
// bucket ticks to the summed quantity of every raw level that quantizes into
// that bucket.
type Book struct {
	symbol     string
	bucketSize Ticks
	bids       map[Ticks]float64
	asks       map[Ticks]float64
}

// NewBook creates an empty book for the given symbol and bucket size.
func NewBook(symbol string, bucketSize float64) *Book {
	b := &Book{}
	b.Reset(symbol, bucketSize)
	return b
}

// Reset wipes both sides and rebinds the book to a symbol and bucket size.
// Called on every symbol or bucket-size change before the new session's
// snapshot arrives, so stale-symbol levels can never leak into the new view.
func (b *Book) Reset(symbol string, bucketSize float64) {
	b.symbol = symbol
	b.bucketSize = ToTicks(bucketSize)
	b.bids = make(map[Ticks]float64)
	b.asks = make(map[Ticks]float64)
}

// Symbol returns the symbol this book is bound to.
func (b *Book) Symbol() string { return b.symbol }

// BucketSize returns the display bucket size as a float price.
func (b *Book) BucketSize() float64 { return b.bucketSize.Price() }

func (b *Book) side(s domain.Side) map[Ticks]float64 {
	if s == domain.SideBuy {
		return b.bids
	}
	return b.asks
}

// ApplySnapshot replaces one side of the book wholesale with the bucketed sum
// of the given raw levels. After the call the side exactly reflects the
// snapshot, independent of any prior state.
func (b *Book) ApplySnapshot(s domain.Side, levels []domain.PriceLevel) {
	fresh := make(map[Ticks]float64, len(levels))
	for _, lvl := range levels {
		bucket := BucketPrice(lvl.Price, b.bucketSize, s)
		fresh[bucket] += lvl.Quantity
	}
	for bucket, qty := range fresh {
		if qty <= 0 || math.Abs(qty) <= minQuantity {
			delete(fresh, bucket)
		}
	}
	if s == domain.SideBuy {
		b.bids = fresh
	} else {
		b.asks = fresh
	}
}

// ApplyDelta folds a single-level update into the book. The upstream feed
// reports net quantity deltas per level, so the value is added to the bucket
// total; a total at or below zero (or within minQuantity of it) removes the
// bucket entirely.
func (b *Book) ApplyDelta(s domain.Side, rawPrice, unfilledQuantity float64) {
	m := b.side(s)
	bucket := BucketPrice(rawPrice, b.bucketSize, s)
	total := m[bucket] + unfilledQuantity
	if total <= 0 || math.Abs(total) <= minQuantity {
		delete(m, bucket)
		return
	}
	m[bucket] = total
}

// TopLevels returns exactly n display rows for one side, best price first for
// bids and best price last for asks (so asks stack down toward the spread).
// Missing depth is padded with absent rows on the far side.
func (b *Book) TopLevels(s domain.Side, n int) []domain.DepthRow {
	m := b.side(s)
	buckets := make([]Ticks, 0, len(m))
	for t := range m {
		buckets = append(buckets, t)
	}

	rows := make([]domain.DepthRow, 0, n)
	if s == domain.SideBuy {
		// Highest bid first.
		sort.Slice(buckets, func(i, j int) bool { return buckets[i] > buckets[j] })
		for i := 0; i < len(buckets) && i < n; i++ {
			rows = append(rows, domain.DepthRow{
				Price:    buckets[i].Price(),
				Quantity: m[buckets[i]],
				Present:  true,
			})
		}
		for len(rows) < n {
			rows = append(rows, domain.DepthRow{})
		}
		return rows
	}

	// Asks: keep the n cheapest, then present them highest-first so the best
	// ask ends up adjacent to the spread.
	sort.Slice(buckets, func(i, j int) bool { return buckets[i] < buckets[j] })
	if len(buckets) > n {
		buckets = buckets[:n]
	}
	for i := len(buckets) - 1; i >= 0; i-- {
		rows = append(rows, domain.DepthRow{
			Price:    buckets[i].Price(),
			Quantity: m[buckets[i]],
			Present:  true,
		})
	}
	for len(rows) < n {
		rows = append([]domain.DepthRow{{}}, rows...)
	}
	return rows
}

// Depth returns a render-ready projection of both sides, n rows each.
func (b *Book) Depth(n int) domain.DepthView {
	return domain.DepthView{
		Symbol:     b.symbol,
		BucketSize: b.bucketSize.Price(),
		Asks:       b.TopLevels(domain.SideSell, n),
		Bids:       b.TopLevels(domain.SideBuy, n),
	}
}
