package repositories

import (
	"errors"

	"pear/internal/models"
)

// ErrStatusOutOfOrder is returned when an update would skip, repeat or
// regress an order's status.
var ErrStatusOutOfOrder = errors.New("status update out of order")

// OrderRepository stores orders and their tracking history.
type OrderRepository interface {
	// Create stores a new order together with its initial Placed update.
	Create(order *models.Order, placed models.StatusUpdate) error
	GetByID(id string) (*models.Order, error)
	Updates(id string) ([]models.StatusUpdate, error)
	AppendUpdate(id string, update models.StatusUpdate) error
	Delete(id string) error
}
