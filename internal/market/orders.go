package market

import (
	"sort"

	"github.com/exdash/exdash/internal/domain"
)

// OrderTable tracks the user's open orders as pushed on the user-order
// channel. Completed orders drop out of the table.
type OrderTable struct {
	orders map[string]domain.Order
}

// NewOrderTable creates an empty order table.
func NewOrderTable() *OrderTable {
	return &OrderTable{orders: make(map[string]domain.Order)}
}

// Reset drops all tracked orders.
func (t *OrderTable) Reset() {
	t.orders = make(map[string]domain.Order)
}

// Apply folds one order event into the table.
func (t *OrderTable) Apply(event domain.OrderEventType, o domain.Order) {
	switch event {
	case domain.OrderEventCreated, domain.OrderEventUpdated:
		t.orders[o.ID] = o
	case domain.OrderEventCompleted:
		delete(t.orders, o.ID)
	}
}

// Orders returns a snapshot of open orders sorted by order ID.
func (t *OrderTable) Orders() []domain.Order {
	out := make([]domain.Order, 0, len(t.orders))
	for _, o := range t.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of open orders.
func (t *OrderTable) Len() int { return len(t.orders) }
