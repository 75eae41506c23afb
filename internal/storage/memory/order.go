package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/comeia-checkout/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository stores orders in memory. Stored values are copies; callers
// never share state with the repository.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*order.Order
}

// NewOrderRepository returns an empty OrderRepository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]*order.Order)}
}

// Save stores a new order.
func (r *OrderRepository) Save(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return errors.Errorf("order %q already exists", o.ID)
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

// Update replaces a stored order.
func (r *OrderRepository) Update(_ context.Context, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; !ok {
		return order.ErrNotFound
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

// FindByID returns a copy of the order.
func (r *OrderRepository) FindByID(_ context.Context, id string) (*order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o.Clone(), nil
}

// ListByUser returns the orders of userID, newest first.
func (r *OrderRepository) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []order.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *o.Clone())
		}
	}
	slices.SortFunc(out, func(a, b order.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}
