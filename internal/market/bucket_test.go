package market

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/exdash/exdash/internal/domain"
)

func TestToTicksRoundTrip(t *testing.T) {
	prices := []float64{0, 0.1, 0.00000001, 1, 49999.95, 123456.78}
	for _, p := range prices {
		require.InDelta(t, p, ToTicks(p).Price(), 1e-9, "price %v", p)
	}
}

func TestBucketPrice_BidFloorsAskCeils(t *testing.T) {
	size := ToTicks(1.0)

	require.Equal(t, ToTicks(49999), BucketPrice(49999.95, size, domain.SideBuy))
	require.Equal(t, ToTicks(50000), BucketPrice(49999.95, size, domain.SideSell))

	// Exactly on a boundary: both sides keep the price as-is.
	require.Equal(t, ToTicks(50000), BucketPrice(50000.0, size, domain.SideBuy))
	require.Equal(t, ToTicks(50000), BucketPrice(50000.0, size, domain.SideSell))
}

func TestBucketPrice_FractionalBucketSize(t *testing.T) {
	size := ToTicks(0.1)

	require.Equal(t, ToTicks(4.2), BucketPrice(4.27, size, domain.SideBuy))
	require.Equal(t, ToTicks(4.3), BucketPrice(4.27, size, domain.SideSell))

	// A price that floats cannot represent exactly must still land in its own
	// bucket, not the neighbour below.
	require.Equal(t, ToTicks(4.3), BucketPrice(4.3, size, domain.SideBuy))
	require.Equal(t, ToTicks(4.3), BucketPrice(4.3, size, domain.SideSell))
}

func TestBucketPrice_Idempotent(t *testing.T) {
	size := ToTicks(0.5)
	for _, side := range []domain.Side{domain.SideBuy, domain.SideSell} {
		for _, raw := range []float64{10.01, 10.49, 10.5, 99.99, 0.26} {
			once := BucketPrice(raw, size, side)
			again := BucketPrice(once.Price(), size, side)
			require.Equal(t, once, again, "side %s raw %v", side, raw)
		}
	}
}

func TestBucketPrice_ZeroSizePassthrough(t *testing.T) {
	require.Equal(t, ToTicks(12.34), BucketPrice(12.34, 0, domain.SideBuy))
}
