package memory

import (
	"context"
	"sync"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps one cart per user.
type CartStore struct {
	mu    sync.Mutex
	carts map[string]*cart.Cart
}

// NewCartStore returns an empty CartStore.
func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]*cart.Cart)}
}

// Get returns a copy of the user's cart. Users without a cart get an empty
// one.
func (s *CartStore) Get(_ context.Context, userID string) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.carts[userID]; ok {
		return c.Clone(), nil
	}
	return cart.New(), nil
}

// Update applies fn to a copy of the user's cart and stores the copy when fn
// succeeds.
func (s *CartStore) Update(_ context.Context, userID string, fn func(*cart.Cart) error) (*cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := cart.New()
	if c, ok := s.carts[userID]; ok {
		next = c.Clone()
	}
	if err := fn(next); err != nil {
		return nil, err
	}
	s.carts[userID] = next
	return next.Clone(), nil
}
