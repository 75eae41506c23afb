// Package events publishes order status changes to Kafka and to in-process
// subscribers.
package events

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/comeia-checkout/internal/domain/order"
)

// TypeStatusChanged is the type of events emitted on every order transition.
const TypeStatusChanged = "order.status_changed"

// Event describes one status transition of an order.
type Event struct {
	ID            string
	Type          string
	OrderID       string
	UserID        string
	Status        order.Status
	Method        string
	TransactionID string
	Reason        string
	Attempt       int
	Total         decimal.Decimal
	At            time.Time
}

// FromOrder builds the status event for the current state of o.
func FromOrder(o *order.Order) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          TypeStatusChanged,
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        o.Status,
		Method:        string(o.PaymentMethod.Type),
		TransactionID: o.TransactionID,
		Reason:        o.FailureReason,
		Attempt:       o.Attempt,
		Total:         o.Total,
		At:            o.UpdatedAt,
	}
}

// Encode writes e as a JSON object.
func (ev Event) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(ev.ID)
	e.FieldStart("type")
	e.Str(ev.Type)
	e.FieldStart("orderId")
	e.Str(ev.OrderID)
	e.FieldStart("userId")
	e.Str(ev.UserID)
	e.FieldStart("status")
	e.Str(ev.Status.String())
	e.FieldStart("paymentMethodType")
	e.Str(ev.Method)
	if ev.TransactionID != "" {
		e.FieldStart("transactionId")
		e.Str(ev.TransactionID)
	}
	if ev.Reason != "" {
		e.FieldStart("error")
		e.Str(ev.Reason)
	}
	e.FieldStart("attempt")
	e.Int(ev.Attempt)
	e.FieldStart("total")
	e.Raw([]byte(ev.Total.StringFixed(2)))
	e.FieldStart("at")
	e.Str(ev.At.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
}

// Bytes returns the JSON encoding of e.
func (ev Event) Bytes() []byte {
	var e jx.Encoder
	ev.Encode(&e)
	return e.Bytes()
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to several publishers, joining their errors.
type Multi []Publisher

// Publish implements Publisher.
func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
