package events

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/comeia-checkout/internal/domain/order"
	"github.com/xenking/comeia-checkout/internal/domain/payment"
)

// --- Mock implementations ---

type mockWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error {
	m.closed = true
	return nil
}

type failingPublisher struct{ err error }

func (p failingPublisher) Publish(context.Context, Event) error { return p.err }

// --- Helpers ---

func testEvent() Event {
	return FromOrder(&order.Order{
		ID:            "ORD-01",
		UserID:        "1",
		Status:        order.StatusFailed,
		PaymentMethod: payment.Method{Type: payment.CreditCard},
		FailureReason: "Saldo insuficiente",
		Attempt:       2,
		Total:         decimal.RequireFromString("50"),
		UpdatedAt:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
}

func decodeFields(t *testing.T, data []byte) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		raw, err := d.Raw()
		if err != nil {
			return err
		}
		out[key] = raw.String()
		return nil
	})
	require.NoError(t, err)
	return out
}

// --- Tests ---

func TestEvent_Encode(t *testing.T) {
	fields := decodeFields(t, testEvent().Bytes())

	assert.Equal(t, `"ORD-01"`, fields["orderId"])
	assert.Equal(t, `"failed"`, fields["status"])
	assert.Equal(t, `"credit_card"`, fields["paymentMethodType"])
	assert.Equal(t, `"Saldo insuficiente"`, fields["error"])
	assert.Equal(t, `2`, fields["attempt"])
	assert.Equal(t, `50.00`, fields["total"])
	assert.Equal(t, `"2025-01-01T00:00:00Z"`, fields["at"])
	assert.NotContains(t, fields, "transactionId")
}

func TestKafkaPublisher(t *testing.T) {
	w := &mockWriter{}
	p := NewKafkaPublisher(w)
	ev := testEvent()

	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ORD-01", string(w.msgs[0].Key))
	assert.Equal(t, ev.Bytes(), w.msgs[0].Value)

	w.err = errors.New("broker down")
	require.ErrorContains(t, p.Publish(context.Background(), ev), "broker down")

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
	assert.Empty(t, ParseBrokers(""))
}

func TestHub(t *testing.T) {
	h := NewHub()
	mine, unsubMine := h.Subscribe("ORD-1")
	other, unsubOther := h.Subscribe("ORD-2")
	defer unsubOther()

	require.NoError(t, h.Publish(context.Background(), Event{OrderID: "ORD-1", Status: order.StatusProcessing}))

	select {
	case ev := <-mine:
		assert.Equal(t, order.StatusProcessing, ev.Status)
	default:
		t.Fatal("subscriber did not receive event")
	}
	select {
	case ev := <-other:
		t.Fatalf("unexpected event for other order: %+v", ev)
	default:
	}

	assert.Equal(t, 1, h.Subscribers("ORD-1"))
	unsubMine()
	unsubMine()
	assert.Equal(t, 0, h.Subscribers("ORD-1"))
	_, open := <-mine
	assert.False(t, open)
}

func TestHub_FullSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub()
	_, unsub := h.Subscribe("ORD-1")
	defer unsub()

	for range subscriberBuffer * 2 {
		require.NoError(t, h.Publish(context.Background(), Event{OrderID: "ORD-1"}))
	}
}

func TestMulti(t *testing.T) {
	h := NewHub()
	ch, unsub := h.Subscribe("ORD-01")
	defer unsub()

	boom := errors.New("boom")
	err := Multi{failingPublisher{err: boom}, h, Nop{}}.Publish(context.Background(), testEvent())

	require.ErrorIs(t, err, boom)
	assert.Len(t, ch, 1, "remaining publishers still receive the event")
}
