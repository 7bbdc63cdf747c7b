// Package bus broadcasts run events to gateway subscribers. Each
// WebSocket connection subscribes once and receives every event; the
// connection layer filters and drops on its own send buffers, so
// handlers must never block.
package bus

import "sync"

// Event is one broadcast notification.
type Event struct {
	Kind      string      `json:"kind"`
	SessionID string      `json:"session_id,omitempty"`
	RunID     string      `json:"run_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// EventHandler receives broadcast events. Must not block.
type EventHandler func(Event)

// Bus fans events out to subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]EventHandler
}

func New() *Bus {
	return &Bus{subscribers: make(map[string]EventHandler)}
}

// Subscribe registers a handler under id, replacing any previous
// handler with the same id.
func (b *Bus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	b.subscribers[id] = handler
	b.mu.Unlock()
}

// Unsubscribe removes a subscriber.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	delete(b.subscribers, id)
	b.mu.Unlock()
}

// Broadcast delivers the event to every subscriber.
func (b *Bus) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, handler := range b.subscribers {
		handler(event)
	}
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
