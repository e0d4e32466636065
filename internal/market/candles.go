package market

import (
	"sort"
	"time"

	"github.com/exdash/exdash/internal/domain"
)

// maxHistory bounds the finalized-candle window kept in memory. The upstream
// history batch is capped at 500 bars, so the live series keeps the same
// window and trims the oldest bars as new ones roll over.
const maxHistory = 500

// Tick is a current-interval OHLC push from the kline channel. HasOpen is
// false when the feed omits the open price (it only sends high/low/close for
// the in-progress bar).
type Tick struct {
	Time    time.Time
	Open    float64
	HasOpen bool
	High    float64
	Low     float64
	Close   float64
}

// CandleSeries folds kline pushes and trade prints into an open candle plus a
// finalized history, rolling the open candle over whenever an event lands in
// a new interval.
type CandleSeries struct {
	symbol   string
	interval time.Duration
	open     *domain.Candle
	history  []domain.Candle
}

// NewCandleSeries creates an empty series for the symbol and interval.
func NewCandleSeries(symbol string, interval time.Duration) *CandleSeries {
	s := &CandleSeries{}
	s.Reset(symbol, interval)
	return s
}

// Reset drops all state and rebinds the series to a symbol and interval.
func (s *CandleSeries) Reset(symbol string, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	s.symbol = symbol
	s.interval = interval
	s.open = nil
	s.history = nil
}

// Symbol returns the symbol this series is bound to.
func (s *CandleSeries) Symbol() string { return s.symbol }

// Interval returns the candle interval.
func (s *CandleSeries) Interval() time.Duration { return s.interval }

// intervalStart floor-aligns t to the candle interval.
func (s *CandleSeries) intervalStart(t time.Time) time.Time {
	return t.Truncate(s.interval)
}

// SeedHistory bulk-loads finalized candles, sorted ascending by interval
// start, and leaves the live portion with no open candle.
func (s *CandleSeries) SeedHistory(candles []domain.Candle) {
	s.history = make([]domain.Candle, len(candles))
	copy(s.history, candles)
	sort.Slice(s.history, func(i, j int) bool {
		return s.history[i].IntervalStart.Before(s.history[j].IntervalStart)
	})
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	s.open = nil
}

// lastClose returns the most recent known close (open candle first, then
// history) and whether one exists.
func (s *CandleSeries) lastClose() (float64, bool) {
	if s.open != nil {
		return s.open.Close, true
	}
	if n := len(s.history); n > 0 {
		return s.history[n-1].Close, true
	}
	return 0, false
}

// finalize appends the open candle to history and clears it.
func (s *CandleSeries) finalize() *domain.Candle {
	if s.open == nil {
		return nil
	}
	done := *s.open
	s.history = append(s.history, done)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	s.open = nil
	return &done
}

// ApplyTick merges a current-interval OHLC push into the open candle, rolling
// over first when the tick belongs to a new interval. It returns the
// finalized candle and true when a roll-over occurred.
func (s *CandleSeries) ApplyTick(tick Tick) (domain.Candle, bool) {
	start := s.intervalStart(tick.Time)

	if s.open != nil && start.Equal(s.open.IntervalStart) {
		if tick.High > s.open.High {
			s.open.High = tick.High
		}
		if tick.Low < s.open.Low {
			s.open.Low = tick.Low
		}
		s.open.Close = tick.Close
		return domain.Candle{}, false
	}

	openPrice := tick.Close
	if tick.HasOpen {
		openPrice = tick.Open
	} else if prev, ok := s.lastClose(); ok {
		openPrice = prev
	}

	finalized := s.finalize()
	s.open = &domain.Candle{
		Symbol:        s.symbol,
		IntervalStart: start,
		Open:          openPrice,
		High:          maxPrice(tick.High, openPrice),
		Low:           minPrice(tick.Low, openPrice),
		Close:         tick.Close,
	}
	if finalized != nil {
		return *finalized, true
	}
	return domain.Candle{}, false
}

// ApplyTrade folds a single trade print into the open candle. A print in a
// new interval finalizes the open candle and starts the next one at the
// previous close, so consecutive candles never gap. It returns the finalized
// candle and true when a roll-over occurred.
func (s *CandleSeries) ApplyTrade(t time.Time, price float64) (domain.Candle, bool) {
	start := s.intervalStart(t)

	if s.open != nil && start.Equal(s.open.IntervalStart) {
		s.open.Close = price
		if price > s.open.High {
			s.open.High = price
		}
		if price < s.open.Low {
			s.open.Low = price
		}
		return domain.Candle{}, false
	}

	openPrice := price
	if prev, ok := s.lastClose(); ok {
		openPrice = prev
	}

	finalized := s.finalize()
	s.open = &domain.Candle{
		Symbol:        s.symbol,
		IntervalStart: start,
		Open:          openPrice,
		High:          maxPrice(price, openPrice),
		Low:           minPrice(price, openPrice),
		Close:         price,
	}
	if finalized != nil {
		return *finalized, true
	}
	return domain.Candle{}, false
}

// Visible returns the most recent count candles (finalized plus the open
// candle, if any) in ascending time order.
func (s *CandleSeries) Visible(count int) []domain.Candle {
	all := make([]domain.Candle, 0, len(s.history)+1)
	all = append(all, s.history...)
	if s.open != nil {
		all = append(all, *s.open)
	}
	if count > 0 && len(all) > count {
		all = all[len(all)-count:]
	}
	out := make([]domain.Candle, len(all))
	copy(out, all)
	return out
}

// Open returns a copy of the in-progress candle, if one exists.
func (s *CandleSeries) Open() (domain.Candle, bool) {
	if s.open == nil {
		return domain.Candle{}, false
	}
	return *s.open, true
}

func maxPrice(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minPrice(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
