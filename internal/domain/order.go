package domain

// OrderType distinguishes limit from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus is the lifecycle state reported by the exchange for a user order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPartial   OrderStatus = "PARTIALLY_FILLED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderRequest is the payload for submitting a new order to the exchange.
type OrderRequest struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Quantity  float64   `json:"quantity"`
	Side      Side      `json:"side"`
	OrderType OrderType `json:"orderType"`
}

// OrderModifyRequest is the payload for modifying price/quantity of an
// existing order.
type OrderModifyRequest struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
}

// Order is a user order as pushed on the user-order channel.
type Order struct {
	ID             string      `json:"id"`
	UserID         string      `json:"userId"`
	Symbol         string      `json:"symbol"`
	Price          float64     `json:"price"`
	Quantity       float64     `json:"quantity"`
	FilledQuantity float64     `json:"filledQuantity"`
	Side           Side        `json:"side"`
	OrderType      OrderType   `json:"orderType"`
	Status         OrderStatus `json:"status"`
}

// OrderEventType classifies user-order push notifications.
type OrderEventType string

const (
	OrderEventCreated   OrderEventType = "ORDER_CREATED"
	OrderEventUpdated   OrderEventType = "ORDER_UPDATED"
	OrderEventCompleted OrderEventType = "ORDER_COMPLETED"
)
