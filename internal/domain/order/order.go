package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is a checkout attempt. Items are a snapshot of the cart taken at
// creation and Total is fixed at that moment. Attempt counts submissions of
// the same checkout, starting at 1.
type Order struct {
	ID            string
	UserID        string
	Items         []cart.Item
	PaymentMethod payment.Method
	Status        Status
	Total         decimal.Decimal
	TransactionID string
	FailureReason string
	Attempt       int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Clone returns a deep copy of o.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = make([]cart.Item, len(o.Items))
	copy(c.Items, o.Items)
	return &c
}

// Advance moves o to next, stamping UpdatedAt.
func (o *Order) Advance(next Status, at time.Time) error {
	if !o.Status.CanTransitionTo(next) {
		return &TransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.UpdatedAt = at
	return nil
}

// Repository defines persistence operations for orders.
type Repository interface {
	Save(ctx context.Context, o *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	ListByUser(ctx context.Context, userID string) ([]Order, error)
}

// PaymentProcessor settles the payment of an order. It never fails in the
// error sense; declines are reported in the Result.
type PaymentProcessor interface {
	Process(ctx context.Context, o *Order) payment.Result
}
