package repositories

import (
	"fmt"
	"sync"

	"pear/internal/models"
)

type orderRecord struct {
	order   models.Order
	updates []models.StatusUpdate
}

// MemoryOrderRepository keeps orders for the lifetime of the process.
type MemoryOrderRepository struct {
	orders map[string]*orderRecord
	mu     sync.RWMutex
}

// NewMemoryOrderRepository creates a new instance of MemoryOrderRepository.
func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders: make(map[string]*orderRecord),
	}
}

// Create adds a new order with its Placed update.
func (r *MemoryOrderRepository) Create(order *models.Order, placed models.StatusUpdate) error {
	if placed.Status != models.StatusPlaced {
		return fmt.Errorf("order %s must start at %s, got %s: %w", order.ID, models.StatusPlaced, placed.Status, ErrStatusOutOfOrder)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return fmt.Errorf("order with ID %s already exists", order.ID)
	}
	r.orders[order.ID] = &orderRecord{
		order:   copyOrder(*order),
		updates: []models.StatusUpdate{placed},
	}
	return nil
}

// GetByID returns a copy of the stored order.
func (r *MemoryOrderRepository) GetByID(id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	order := copyOrder(rec.order)
	return &order, nil
}

// Updates returns the order's status history in the order it was appended.
func (r *MemoryOrderRepository) Updates(id string) ([]models.StatusUpdate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	updates := make([]models.StatusUpdate, len(rec.updates))
	copy(updates, rec.updates)
	return updates, nil
}

// AppendUpdate extends the history. The update must carry the status right
// after the last one and must not be older than it.
func (r *MemoryOrderRepository) AppendUpdate(id string, update models.StatusUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.orders[id]
	if !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	last := rec.updates[len(rec.updates)-1]
	next, ok := last.Status.Next()
	if !ok || update.Status != next {
		return fmt.Errorf("order %s is at %s, cannot move to %s: %w", id, last.Status, update.Status, ErrStatusOutOfOrder)
	}
	if update.Timestamp.Before(last.Timestamp) {
		return fmt.Errorf("order %s update for %s is older than the previous one: %w", id, update.Status, ErrStatusOutOfOrder)
	}
	rec.updates = append(rec.updates, update)
	return nil
}

// Delete discards an order and its history.
func (r *MemoryOrderRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return fmt.Errorf("order with ID %s: %w", id, ErrNotFound)
	}
	delete(r.orders, id)
	return nil
}

func copyOrder(o models.Order) models.Order {
	items := make([]models.CartLine, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}
