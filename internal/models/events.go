package models

import "time"

// Event types
const (
	EventTypeOrderPlaced  = "ORDER_PLACED"
	EventTypeOrderShipped = "ORDER_SHIPPED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent is published after an order document is created.
// Consumers use it to build the Postgres order archive read model.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID  string          `json:"order_id"`
	Email    string          `json:"email"`
	Name     string          `json:"name"`
	Total    float64         `json:"total"`
	Items    []OrderItemData `json:"items"`
	PlacedAt time.Time       `json:"placed_at"`
}

// OrderShippedEvent is published when an admin marks an order shipped.
type OrderShippedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}
