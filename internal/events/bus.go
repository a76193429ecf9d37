package events

import (
	"sync"
)

// Listener observes events emitted on a Bus.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

// HandleEvent calls f(e).
func (f ListenerFunc) HandleEvent(e Event) { f(e) }

type listenerEntry struct {
	id       int
	listener Listener
}

// Bus delivers every emitted event to all subscribed listeners, in
// subscription order, on the emitting goroutine. Emit returns only after all
// listeners ran, so observers see the tree in the state the event describes.
type Bus struct {
	listeners []listenerEntry
	nextID    int
	mu        sync.RWMutex
	closed    bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Emit publishes an event to all listeners.
// Emit is a no-op after Close.
func (b *Bus) Emit(event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	// Snapshot so listeners may subscribe or unsubscribe while handling.
	listeners := make([]listenerEntry, len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.RUnlock()

	for _, entry := range listeners {
		entry.listener.HandleEvent(event)
	}
}

// Subscribe registers l and returns a function that removes it again.
// The returned function is safe to call more than once.
func (b *Bus) Subscribe(l Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, listenerEntry{id: id, listener: l})

	return func() { b.unsubscribe(id) }
}

// SubscribeFunc registers a function listener.
func (b *Bus) SubscribeFunc(fn func(Event)) func() {
	return b.Subscribe(ListenerFunc(fn))
}

func (b *Bus) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.listeners {
		if entry.id == id {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Len returns the number of listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Close drops all listeners and marks the bus as closed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.listeners = nil
}
