package market

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exdash/exdash/internal/domain"
)

func TestApplySnapshot_SumsSameBucket(t *testing.T) {
	b := NewBook("BTCUSDT", 1.0)

	b.ApplySnapshot(domain.SideBuy, []domain.PriceLevel{
		{Price: 49999.95, Quantity: 1.2},
		{Price: 49999.2, Quantity: 0.3},
	})

	rows := b.TopLevels(domain.SideBuy, 5)
	require.True(t, rows[0].Present)
	require.Equal(t, 49999.0, rows[0].Price)
	require.InDelta(t, 1.5, rows[0].Quantity, 1e-12)
}

func TestApplySnapshot_ReplacesWholesale(t *testing.T) {
	b := NewBook("BTCUSDT", 1.0)

	b.ApplySnapshot(domain.SideBuy, []domain.PriceLevel{{Price: 100.5, Quantity: 2}})
	b.ApplySnapshot(domain.SideBuy, []domain.PriceLevel{{Price: 200.5, Quantity: 1}})

	rows := b.TopLevels(domain.SideBuy, 5)
	require.Equal(t, 200.0, rows[0].Price)
	require.False(t, rows[1].Present, "stale bucket from the prior snapshot survived")
}

func TestApplyDelta_AccumulatesAndDeletes(t *testing.T) {
	b := NewBook("BTCUSDT", 1.0)
	b.ApplySnapshot(domain.SideBuy, []domain.PriceLevel{
		{Price: 49999.95, Quantity: 1.2},
		{Price: 49999.2, Quantity: 0.3},
	})

	// A zero delta leaves the bucket untouched.
	b.ApplyDelta(domain.SideBuy, 49999.95, 0)
	rows := b.TopLevels(domain.SideBuy, 5)
	require.InDelta(t, 1.5, rows[0].Quantity, 1e-12)

	// Driving the total to zero removes the bucket entirely.
	b.ApplyDelta(domain.SideBuy, 49999.95, -1.5)
	rows = b.TopLevels(domain.SideBuy, 5)
	require.False(t, rows[0].Present, "bucket with zero quantity retained")
}

func TestApplyDelta_EpsilonResidueDeleted(t *testing.T) {
	b := NewBook("BTCUSDT", 1.0)
	b.ApplyDelta(domain.SideSell, 50000.25, 0.5)
	b.ApplyDelta(domain.SideSell, 50000.25, -0.5+1e-9)

	for _, row := range b.TopLevels(domain.SideSell, 5) {
		require.False(t, row.Present, "bucket below the quantity floor survived")
	}
}

func TestApplyDelta_NegativeTotalDeleted(t *testing.T) {
	b := NewBook("ETHUSDT", 0.1)
	b.ApplyDelta(domain.SideBuy, 2999.97, 1.0)
	b.ApplyDelta(domain.SideBuy, 2999.93, -2.0)

	for _, row := range b.TopLevels(domain.SideBuy, 5) {
		require.False(t, row.Present)
	}
}

func TestTopLevels_AlwaysExactlyN(t *testing.T) {
	b := NewBook("BTCUSDT", 1.0)

	// Empty book: all sentinels.
	require.Len(t, b.TopLevels(domain.SideBuy, 5), 5)
	require.Len(t, b.TopLevels(domain.SideSell, 5), 5)

	// Deeper than n: still exactly n.
	levels := make([]domain.PriceLevel, 0, 12)
	for i := 0; i < 12; i++ {
		levels = append(levels, domain.PriceLevel{Price: 50000 + float64(i), Quantity: 1})
	}
	b.ApplySnapshot(domain.SideSell, levels)
	rows := b.TopLevels(domain.SideSell, 5)
	require.Len(t, rows, 5)
	for _, row := range rows {
		require.True(t, row.Present)
	}
}

func TestTopLevels_Ordering(t *testing.T) {
	b := NewBook("BTCUSDT", 1.0)
	b.ApplySnapshot(domain.SideBuy, []domain.PriceLevel{
		{Price: 49998.5, Quantity: 1},
		{Price: 49999.5, Quantity: 1},
		{Price: 49997.5, Quantity: 1},
	})
	b.ApplySnapshot(domain.SideSell, []domain.PriceLevel{
		{Price: 50001.5, Quantity: 1},
		{Price: 50000.5, Quantity: 1},
		{Price: 50002.5, Quantity: 1},
	})

	bids := b.TopLevels(domain.SideBuy, 5)
	require.Equal(t, 49999.0, bids[0].Price, "best bid first")
	require.Equal(t, 49998.0, bids[1].Price)
	require.Equal(t, 49997.0, bids[2].Price)
	require.False(t, bids[3].Present, "bids padded on the far side")

	asks := b.TopLevels(domain.SideSell, 5)
	require.False(t, asks[0].Present, "asks padded on the far side")
	require.False(t, asks[1].Present)
	require.Equal(t, 50003.0, asks[2].Price)
	require.Equal(t, 50002.0, asks[3].Price)
	require.Equal(t, 50001.0, asks[4].Price, "best ask adjacent to the spread")
}

func TestReset_ClearsToSentinels(t *testing.T) {
	b := NewBook("BTCUSDT", 1.0)
	b.ApplySnapshot(domain.SideBuy, []domain.PriceLevel{{Price: 49999.5, Quantity: 2}})
	b.ApplySnapshot(domain.SideSell, []domain.PriceLevel{{Price: 50000.5, Quantity: 2}})

	b.Reset("ETHUSDT", 0.1)

	view := b.Depth(5)
	require.Equal(t, "ETHUSDT", view.Symbol)
	require.InDelta(t, 0.1, view.BucketSize, 1e-12)
	for _, row := range append(view.Bids, view.Asks...) {
		require.False(t, row.Present, "stale-symbol data visible after reset")
	}
}

func TestDepth_NoResidualDust(t *testing.T) {
	b := NewBook("BTCUSDT", 1.0)

	// Arbitrary interleaving of snapshots and deltas must never leave a
	// visible bucket at or below the quantity floor.
	b.ApplySnapshot(domain.SideBuy, []domain.PriceLevel{
		{Price: 100.1, Quantity: 0.4},
		{Price: 100.9, Quantity: 0.6},
		{Price: 101.2, Quantity: 1e-12},
	})
	b.ApplyDelta(domain.SideBuy, 100.5, -1.0)
	b.ApplyDelta(domain.SideBuy, 102.3, 0.7)
	b.ApplyDelta(domain.SideBuy, 102.3, -0.7)

	for _, row := range b.Depth(5).Bids {
		if row.Present {
			require.Greater(t, row.Quantity, minQuantity)
		}
	}
}
