package events

import (
	"slices"
	"sync"
)

// Event is the payload type carried by a Bus. Concrete event kinds (Kind,
// GatewayID, and per-kind data) live in pkg/connection; Bus is
// deliberately generic so Connection and Manager can each run their own
// instance over their own event type.
type Event = any

// Bus fans a stream of events out to subscribers. Zero value is usable.
// Safe for concurrent Subscribe/Unsubscribe/Emit, though this module's
// Connection and Manager only ever emit from their single owning task.
type Bus struct {
	mu        sync.Mutex
	nextID    uint64
	observers map[uint64]func(Event)
}

// Subscribe registers fn to be called with every subsequently emitted
// event, in emission order. The returned func removes the subscription;
// it is safe to call more than once and from within fn itself.
func (b *Bus) Subscribe(fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	if b.observers == nil {
		b.observers = make(map[uint64]func(Event))
	}
	id := b.nextID
	b.nextID++
	b.observers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.observers, id)
			b.mu.Unlock()
		})
	}
}

// Emit delivers event to every current subscriber, in the order they
// subscribed. Subscribers added or removed during Emit do not affect the
// set of callbacks invoked for this call.
func (b *Bus) Emit(event Event) {
	b.mu.Lock()
	ids := make([]uint64, 0, len(b.observers))
	for id := range b.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	callbacks := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		callbacks = append(callbacks, b.observers[id])
	}
	b.mu.Unlock()

	for _, fn := range callbacks {
		fn(event)
	}
}

// Len reports the current subscriber count, mainly for tests.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}
