package services

import (
	"fmt"
	"sync"
	"sync/atomic"

	"score-relay-system/models"
)

// subscriberBuffer bounds the per-client queue. A client that falls
// further behind than this loses its oldest undelivered messages;
// replay-on-connect is unaffected.
const subscriberBuffer = 32

// Hub fans chat messages out to every live connection. Publish is
// fire-and-forget: clients not subscribed at publish time only ever see
// the message through log replay.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]chan models.ChatMessage
	nextID      atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]chan models.ChatMessage)}
}

// Subscribe registers a live connection and returns its id and channel.
// The channel starts buffering immediately, so callers can fetch replay
// history afterwards without losing concurrent publishes.
func (h *Hub) Subscribe() (string, <-chan models.ChatMessage) {
	id := fmt.Sprintf("sub-%d", h.nextID.Add(1))
	ch := make(chan models.ChatMessage, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	return id, ch
}

// Unsubscribe removes the connection and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Publish delivers msg to every current subscriber. A full buffer drops
// that subscriber's oldest queued message; publish never blocks.
func (h *Hub) Publish(msg models.ChatMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- msg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of live connections.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
