package market

import "github.com/exdash/exdash/internal/domain"

// DefaultTradeCapacity matches the dashboard's recent-trades table height.
const DefaultTradeCapacity = 5

// TradeFeed is a fixed-capacity, newest-first log of trade prints.
type TradeFeed struct {
	capacity int
	trades   []domain.Trade
}

// NewTradeFeed creates a feed holding at most capacity trades.
func NewTradeFeed(capacity int) *TradeFeed {
	if capacity <= 0 {
		capacity = DefaultTradeCapacity
	}
	return &TradeFeed{
		capacity: capacity,
		trades:   make([]domain.Trade, 0, capacity),
	}
}

// Capacity returns the fixed buffer capacity.
func (f *TradeFeed) Capacity() int { return f.capacity }

// Reset empties the feed, e.g. on a symbol switch.
func (f *TradeFeed) Reset() {
	f.trades = f.trades[:0]
}

// Seed replaces the buffer with an initial batch, pushing each trade in
// arrival order so the batch ends up newest-first like incremental updates.
// An empty batch fills the buffer with placeholder rows so the rendered
// table keeps its fixed height.
func (f *TradeFeed) Seed(trades []domain.Trade) {
	f.trades = f.trades[:0]
	if len(trades) == 0 {
		for i := 0; i < f.capacity; i++ {
			f.trades = append(f.trades, domain.Trade{})
		}
		return
	}
	for _, t := range trades {
		f.Push(t)
	}
}

// Push inserts a trade at the head, evicting the oldest entry when the
// buffer is full.
func (f *TradeFeed) Push(t domain.Trade) {
	f.trades = append([]domain.Trade{t}, f.trades...)
	if len(f.trades) > f.capacity {
		f.trades = f.trades[:f.capacity]
	}
}

// Trades returns a newest-first copy of the buffer.
func (f *TradeFeed) Trades() []domain.Trade {
	out := make([]domain.Trade, len(f.trades))
	copy(out, f.trades)
	return out
}
