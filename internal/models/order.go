package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderMode selects which of a product's two prices is active.
type OrderMode string

const (
	OrderModeRetail    OrderMode = "Retail"
	OrderModeWholesale OrderMode = "Wholesale"
)

// Valid reports whether m is one of the known order modes.
func (m OrderMode) Valid() bool {
	return m == OrderModeRetail || m == OrderModeWholesale
}

// DeliveryOption is recorded on the order and carries no pricing logic.
type DeliveryOption string

const (
	DeliveryStandard DeliveryOption = "Standard Shipping"
	DeliveryExpress  DeliveryOption = "Express Shipping"
	DeliveryPickup   DeliveryOption = "In-Store Pickup"
)

// Valid reports whether d is one of the known delivery options.
func (d DeliveryOption) Valid() bool {
	switch d {
	case DeliveryStandard, DeliveryExpress, DeliveryPickup:
		return true
	}
	return false
}

// CartLine is a product together with the quantity ordered.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Order is the immutable record created at checkout.
type Order struct {
	ID             string          `json:"id"`
	Items          []CartLine      `json:"items"`
	Mode           OrderMode       `json:"order_mode"`
	DeliveryOption DeliveryOption  `json:"delivery_option"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	CreatedAt      time.Time       `json:"created_at"`
}

// StatusUpdate is one entry of an order's tracking history.
type StatusUpdate struct {
	Status    OrderStatus `json:"status"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// OrderEvent is the envelope published to the event broker.
type OrderEvent struct {
	EventID        string          `json:"event_id"`
	Type           string          `json:"type"`
	OrderID        string          `json:"order_id"`
	Status         string          `json:"status,omitempty"`
	Message        string          `json:"message,omitempty"`
	Total          decimal.Decimal `json:"total"`
	Mode           OrderMode       `json:"order_mode"`
	DeliveryOption DeliveryOption  `json:"delivery_option"`
	CreatedAt      time.Time       `json:"created_at"`
}

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusUpdated = "order.status_updated"
)
