package events

import (
	"context"
	"sync"
)

// subscriberBuffer covers the two transitions of a tracking cycle plus a
// retry, so a slow reader does not lose the terminal event.
const subscriberBuffer = 8

// Hub fans events out to in-process subscribers of a single order.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

var _ Publisher = (*Hub)(nil)

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe returns a channel receiving events of orderID and a function
// that unsubscribes and closes it.
func (h *Hub) Subscribe(orderID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	set, ok := h.subs[orderID]
	if !ok {
		set = make(map[chan Event]struct{})
		h.subs[orderID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, orderID)
			}
			close(ch)
		})
	}
}

// Publish delivers ev to the subscribers of its order. Full subscribers are
// skipped rather than blocking the publisher.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.OrderID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of subscribers of orderID.
func (h *Hub) Subscribers(orderID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[orderID])
}
