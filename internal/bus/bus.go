// Package bus is the in-process fan-out channel every event consumer
// subscribes to.
package bus

import (
	"sync"

	"github.com/headline-goat/intent-goat/internal/events"
)

// Handler consumes one event. Handlers may publish.
type Handler func(events.Event)

type subscription struct {
	id int
	h  Handler
}

// Bus delivers every published event to every subscriber, synchronously
// and in subscription order. An event published while another is being
// delivered is queued and delivered once the current event has reached
// all subscribers, so every subscriber observes the same sequence.
//
// When publishers race from several goroutines, the goroutine already
// draining the queue delivers the other goroutines' events and their
// Publish calls return before delivery.
type Bus struct {
	mu       sync.Mutex
	subs     []subscription
	nextID   int
	queue    []events.Event
	draining bool
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, h: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Publish enqueues e and drains the queue unless a drain is in progress.
func (b *Bus) Publish(e events.Event) {
	b.mu.Lock()
	b.queue = append(b.queue, e)
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true

	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		subs := append([]subscription(nil), b.subs...)
		b.mu.Unlock()

		for _, s := range subs {
			s.h(next)
		}

		b.mu.Lock()
	}
	b.draining = false
	b.mu.Unlock()
}
