package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/exdash/exdash/internal/domain"
)

func at(hh, mm, ss int) time.Time {
	return time.Date(2026, 3, 10, hh, mm, ss, 0, time.UTC)
}

func TestCandleSeries_TicksMergeThenRollOver(t *testing.T) {
	s := NewCandleSeries("BTCUSDT", time.Minute)

	_, rolled := s.ApplyTick(Tick{Time: at(10, 0, 5), Open: 100, HasOpen: true, High: 101, Low: 99, Close: 100.5})
	require.False(t, rolled)

	// Same interval: merge into the open candle.
	_, rolled = s.ApplyTick(Tick{Time: at(10, 0, 30), Open: 100, HasOpen: true, High: 102, Low: 98, Close: 101})
	require.False(t, rolled)

	open, ok := s.Open()
	require.True(t, ok)
	require.Equal(t, at(10, 0, 0), open.IntervalStart)
	require.Equal(t, 100.0, open.Open)
	require.Equal(t, 102.0, open.High)
	require.Equal(t, 98.0, open.Low)
	require.Equal(t, 101.0, open.Close)

	// New interval: finalize and start the next candle.
	finalized, rolled := s.ApplyTick(Tick{Time: at(10, 1, 10), Open: 101, HasOpen: true, High: 101.5, Low: 100.8, Close: 101.2})
	require.True(t, rolled)
	require.Equal(t, at(10, 0, 0), finalized.IntervalStart)
	require.Equal(t, 101.0, finalized.Close)

	open, ok = s.Open()
	require.True(t, ok)
	require.Equal(t, at(10, 1, 0), open.IntervalStart)
}

func TestCandleSeries_TradeRollOverOpensAtPriorClose(t *testing.T) {
	s := NewCandleSeries("BTCUSDT", time.Minute)

	s.ApplyTrade(at(10, 0, 5), 100)
	s.ApplyTrade(at(10, 0, 30), 104)

	finalized, rolled := s.ApplyTrade(at(10, 1, 10), 98)
	require.True(t, rolled)
	require.Equal(t, 104.0, finalized.Close)

	open, ok := s.Open()
	require.True(t, ok)
	require.Equal(t, 104.0, open.Open, "new candle opens at the prior close")
	require.Equal(t, 104.0, open.High)
	require.Equal(t, 98.0, open.Low)
	require.Equal(t, 98.0, open.Close)
}

func TestCandleSeries_FirstCandleAfterSeedOpensAtSeedClose(t *testing.T) {
	s := NewCandleSeries("BTCUSDT", time.Minute)
	s.SeedHistory([]domain.Candle{
		{Symbol: "BTCUSDT", IntervalStart: at(9, 58, 0), Open: 95, High: 97, Low: 94, Close: 96},
		{Symbol: "BTCUSDT", IntervalStart: at(9, 59, 0), Open: 96, High: 99, Low: 96, Close: 98},
	})

	s.ApplyTrade(at(10, 0, 5), 102)

	open, ok := s.Open()
	require.True(t, ok)
	require.Equal(t, 98.0, open.Open)
	require.Equal(t, 102.0, open.High)
	require.Equal(t, 98.0, open.Low)
}

func TestCandleSeries_SeedSortsAscending(t *testing.T) {
	s := NewCandleSeries("BTCUSDT", time.Minute)
	s.SeedHistory([]domain.Candle{
		{IntervalStart: at(9, 59, 0), Close: 98},
		{IntervalStart: at(9, 57, 0), Close: 94},
		{IntervalStart: at(9, 58, 0), Close: 96},
	})

	got := s.Visible(10)
	require.Len(t, got, 3)
	require.Equal(t, at(9, 57, 0), got[0].IntervalStart)
	require.Equal(t, at(9, 58, 0), got[1].IntervalStart)
	require.Equal(t, at(9, 59, 0), got[2].IntervalStart)
}

func TestCandleSeries_VisibleIncludesOpenCandle(t *testing.T) {
	s := NewCandleSeries("BTCUSDT", time.Minute)
	s.SeedHistory([]domain.Candle{
		{IntervalStart: at(9, 58, 0), Close: 96},
		{IntervalStart: at(9, 59, 0), Close: 98},
	})
	s.ApplyTrade(at(10, 0, 5), 100)

	got := s.Visible(2)
	require.Len(t, got, 2)
	require.Equal(t, at(9, 59, 0), got[0].IntervalStart)
	require.Equal(t, at(10, 0, 0), got[1].IntervalStart)
}

func TestCandleSeries_HistoryBounded(t *testing.T) {
	s := NewCandleSeries("BTCUSDT", time.Minute)
	base := at(0, 0, 0)
	for i := 0; i < maxHistory+25; i++ {
		s.ApplyTrade(base.Add(time.Duration(i)*time.Minute), 100+float64(i))
	}

	got := s.Visible(0)
	require.Len(t, got, maxHistory+1, "finalized window plus the open candle")
}

func TestCandleSeries_InvariantHighLowBracketOpenClose(t *testing.T) {
	s := NewCandleSeries("BTCUSDT", time.Minute)
	s.ApplyTrade(at(10, 0, 5), 100)
	s.ApplyTrade(at(10, 0, 40), 110)

	// Roll-over on a much lower print: high must still cover the carried
	// open, not collapse to the print.
	_, rolled := s.ApplyTrade(at(10, 1, 3), 90)
	require.True(t, rolled)

	open, _ := s.Open()
	require.GreaterOrEqual(t, open.High, open.Open)
	require.GreaterOrEqual(t, open.High, open.Close)
	require.LessOrEqual(t, open.Low, open.Open)
	require.LessOrEqual(t, open.Low, open.Close)
}

func TestCandleSeries_ResetClearsEverything(t *testing.T) {
	s := NewCandleSeries("BTCUSDT", time.Minute)
	s.SeedHistory([]domain.Candle{{IntervalStart: at(9, 59, 0), Close: 98}})
	s.ApplyTrade(at(10, 0, 5), 100)

	s.Reset("ETHUSDT", 5*time.Minute)

	require.Equal(t, "ETHUSDT", s.Symbol())
	require.Equal(t, 5*time.Minute, s.Interval())
	require.Empty(t, s.Visible(0))
	_, ok := s.Open()
	require.False(t, ok)
}
