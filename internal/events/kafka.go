package events

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives order status events.
const DefaultTopic = "comeia.orders"

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var _ MessageWriter = (*kafka.Writer)(nil)

// ParseBrokers splits a comma-separated broker list, dropping blanks.
func ParseBrokers(csv string) []string {
	var brokers []string
	for _, b := range strings.Split(csv, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// NewWriter returns a Kafka writer that partitions by message key, so all
// events of an order land on one partition in order.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
}

// KafkaPublisher writes events keyed by order id.
type KafkaPublisher struct {
	w   MessageWriter
	now func() time.Time
}

var _ Publisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher creates a publisher on top of w.
func NewKafkaPublisher(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w, now: time.Now}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	msg := kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: ev.Bytes(),
		Time:  p.now().UTC(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
			{Key: "status", Value: []byte(ev.Status)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "write event for %s", ev.OrderID)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
