package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/xenking/comeia-checkout/internal/domain/cart"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
)

// IDPrefix marks order ids so they cannot be mistaken for transaction or
// user ids.
const IDPrefix = "ORD-"

// ErrTotalMismatch is returned when the given total differs from the sum of
// the items.
var ErrTotalMismatch = errors.New("total does not match items")

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewID returns a new time-ordered order id.
func NewID() string {
	return IDPrefix + ulid.Make().String()
}

// FactoryConfig configures a Factory. Zero values select defaults.
type FactoryConfig struct {
	// Delay models the round trip of creating an order remotely.
	Delay time.Duration
	Now   func() time.Time
	Sleep Sleeper
	NewID func() string
}

// Factory builds new orders in the pending state.
type Factory struct {
	delay time.Duration
	now   func() time.Time
	sleep Sleeper
	newID func() string
}

// NewFactory creates a Factory from cfg.
func NewFactory(cfg FactoryConfig) *Factory {
	f := &Factory{
		delay: cfg.Delay,
		now:   cfg.Now,
		sleep: cfg.Sleep,
		newID: cfg.NewID,
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.sleep == nil {
		f.sleep = Sleep
	}
	if f.newID == nil {
		f.newID = NewID
	}
	return f
}

// CreateOrder builds a pending order for userID from a snapshot of items.
// Only the structure is checked: the method payload must match its type and
// total must equal the sum of items. Emptiness is the caller's concern.
func (f *Factory) CreateOrder(
	ctx context.Context,
	userID string,
	items []cart.Item,
	method payment.Method,
	total decimal.Decimal,
) (*Order, error) {
	if err := method.Check(); err != nil {
		return nil, errors.Wrap(err, "payment method")
	}
	if sum := cart.Sum(items); !sum.Equal(total) {
		return nil, errors.Wrapf(ErrTotalMismatch, "total %s, items sum %s", total, sum)
	}
	if err := f.sleep(ctx, f.delay); err != nil {
		return nil, errors.Wrap(err, "simulate create delay")
	}

	snapshot := make([]cart.Item, len(items))
	copy(snapshot, items)

	now := f.now()
	return &Order{
		ID:            f.newID(),
		UserID:        userID,
		Items:         snapshot,
		PaymentMethod: method,
		Status:        StatusPending,
		Total:         total,
		Attempt:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}
