package services

import (
	"fmt"
	"sync/atomic"
	"time"

	"pear/internal/models"
)

// OrderFactory snapshots carts into orders.
type OrderFactory struct {
	now func() time.Time
	seq atomic.Uint64
}

// NewOrderFactory creates an OrderFactory. A nil now uses time.Now.
func NewOrderFactory(now func() time.Time) *OrderFactory {
	if now == nil {
		now = time.Now
	}
	return &OrderFactory{now: now}
}

// PlaceOrder freezes the cart lines and their total under mode into a new
// Order. The cart itself is left untouched.
func (f *OrderFactory) PlaceOrder(cart *Cart, mode models.OrderMode, delivery models.DeliveryOption) (*models.Order, error) {
	if cart == nil || cart.Len() == 0 {
		return nil, invalid("cart", ErrEmptyCart)
	}
	if !mode.Valid() {
		return nil, invalid("order_mode", ErrInvalidMode)
	}
	if !delivery.Valid() {
		return nil, invalid("delivery_option", ErrInvalidDeliveryOption)
	}

	createdAt := f.now()
	// The sequence keeps ids unique when two orders share a clock tick.
	id := fmt.Sprintf("ORD-%d-%d", createdAt.UnixMilli(), f.seq.Add(1))

	return &models.Order{
		ID:             id,
		Items:          cart.Lines(),
		Mode:           mode,
		DeliveryOption: delivery,
		TotalPrice:     cart.Total(mode),
		CreatedAt:      createdAt,
	}, nil
}
