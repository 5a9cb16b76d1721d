package models

import "fmt"

// OrderStatus is the fulfillment state of an order. Values are ordered.
type OrderStatus int

const (
	StatusPlaced OrderStatus = iota
	StatusProcessing
	StatusPackaged
	StatusShipped
	StatusDelivered
)

var statusNames = [...]string{
	StatusPlaced:     "Order Placed",
	StatusProcessing: "Processing",
	StatusPackaged:   "Packaged",
	StatusShipped:    "Shipped",
	StatusDelivered:  "Delivered",
}

// OrderStatuses returns every status in progression order.
func OrderStatuses() []OrderStatus {
	return []OrderStatus{StatusPlaced, StatusProcessing, StatusPackaged, StatusShipped, StatusDelivered}
}

func (s OrderStatus) String() string {
	if !s.Valid() {
		return fmt.Sprintf("OrderStatus(%d)", int(s))
	}
	return statusNames[s]
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	return s >= StatusPlaced && s <= StatusDelivered
}

// Terminal reports whether no status follows s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered
}

// Next returns the status following s. ok is false for the terminal status.
func (s OrderStatus) Next() (next OrderStatus, ok bool) {
	if !s.Valid() || s.Terminal() {
		return s, false
	}
	return s + 1, true
}

// ParseOrderStatus accepts the display name ("Order Placed") or the short
// name ("Placed").
func ParseOrderStatus(name string) (OrderStatus, error) {
	if name == "Placed" {
		return StatusPlaced, nil
	}
	for i, n := range statusNames {
		if n == name {
			return OrderStatus(i), nil
		}
	}
	return 0, fmt.Errorf("unknown order status %q", name)
}

func (s OrderStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid order status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *OrderStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseOrderStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
