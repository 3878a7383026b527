// Package events fans out newly persisted samples to live subscribers.
package events

import (
	"sync"
	"time"

	"hostwatch/internal/metrics"
)

const (
	TypeSample = "sample"
	TypeHalt   = "collector.halted"
)

const defaultBuffer = 16

// Event is one live-feed message.
type Event struct {
	Type      string          `json:"type"`
	Timestamp string          `json:"timestamp"`
	Sample    *metrics.Sample `json:"sample,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// NewSampleEvent wraps a stored sample.
func NewSampleEvent(sample metrics.Sample) Event {
	return Event{
		Type:      TypeSample,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Sample:    &sample,
	}
}

// NewHaltEvent announces a policy halt.
func NewHaltEvent(message string) Event {
	return Event{
		Type:      TypeHalt,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Message:   message,
	}
}

// Hub is a non-blocking broadcaster; slow subscribers miss events.
type Hub struct {
	mu          sync.RWMutex
	nextID      int64
	subscribers map[int64]chan Event
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[int64]chan Event),
	}
}

// Subscribe registers a buffered subscriber.
// Params: buffer channel capacity (<= 0 uses default).
// Returns: receive channel and idempotent unsubscribe func.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if h == nil {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subscribers[id] = ch
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		current, ok := h.subscribers[id]
		if ok {
			delete(h.subscribers, id)
		}
		h.mu.Unlock()
		if ok {
			close(current)
		}
	}
	return ch, unsubscribe
}

func (h *Hub) Publish(event Event) {
	if h == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subscribers {
		select {
		case sub <- event:
		default:
			// Slow client; the next sample supersedes this one.
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
