// Package event provides generic event emission utilities.
package event

import "sync"

type subscription[E any] struct {
	id int
	fn func(E)
}

// Emitter provides thread-safe event emission with handler registration.
// It handles the common pattern of registering handlers, emitting events
// to all registered handlers, and removing handlers at teardown.
type Emitter[E any] struct {
	// +checklocks:mu
	subs []subscription[E]
	// +checklocks:mu
	nextID int
	mu     sync.RWMutex
}

// Subscribe registers an event handler and returns a token for Unsubscribe.
// Handlers are called synchronously, in subscription order, when events are
// emitted.
func (e *Emitter[E]) Subscribe(handler func(E)) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	e.subs = append(e.subs, subscription[E]{id: e.nextID, fn: handler})
	return e.nextID
}

// Unsubscribe removes the handler registered under id.
// Unknown ids are ignored, so double-unsubscribe is safe.
func (e *Emitter[E]) Unsubscribe(id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.subs {
		if s.id == id {
			e.subs = append(e.subs[:i], e.subs[i+1:]...)
			return
		}
	}
}

// Emit sends an event to all registered handlers.
// Handlers are called with a copy of the handler slice to allow
// safe iteration even if handlers are added or removed during emission.
// Must not be called with lock held.
func (e *Emitter[E]) Emit(event E) {
	e.mu.RLock()
	handlers := make([]func(E), len(e.subs))
	for i, s := range e.subs {
		handlers[i] = s.fn
	}
	e.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
