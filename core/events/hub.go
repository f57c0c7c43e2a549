package events

import (
	"sync"

	"notelend/core/types"
)

// Delivery is an event handed to a subscriber. Seq is the journal sequence
// number of the event, or zero when it was not journaled.
type Delivery struct {
	Seq   uint64
	Event *types.Event
}

// Hub delivers flattened events to live subscribers. Slow subscribers drop
// events rather than blocking the publisher.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan Delivery
	size   int
}

// NewHub returns a hub whose subscriber channels buffer up to size events.
func NewHub(size int) *Hub {
	if size <= 0 {
		size = 64
	}
	return &Hub{subs: make(map[uint64]chan Delivery), size: size}
}

// Emit implements Emitter for events that bypass the journal.
func (h *Hub) Emit(evt Event) {
	h.Publish(0, Flatten(evt))
}

// Publish delivers an already flattened event tagged with seq.
func (h *Hub) Publish(seq uint64, evt *types.Event) {
	if h == nil || evt == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- Delivery{Seq: seq, Event: evt}:
		default:
		}
	}
}

// Subscribe registers a new listener. The returned cancel func must be called
// to release the subscription; it closes the channel.
func (h *Hub) Subscribe() (<-chan Delivery, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	ch := make(chan Delivery, h.size)
	h.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports the number of active listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
