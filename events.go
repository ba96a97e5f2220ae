package kompas

import "sync"

// Event names used in debug logs and metrics labels.
const (
	eventInitialized         = "initialized"
	eventExternalDataUpdated = "external-data-updated"
)

// emitter delivers values of a single event type to subscribed handlers in
// registration order. Emission is synchronous on the emitting goroutine;
// handlers registered or removed during emission take effect on the next
// emit.
type emitter[T any] struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []eventHandler[T]
}

type eventHandler[T any] struct {
	id uint64
	fn func(T)
}

// subscribe registers fn and returns a removal function. Removal is
// idempotent.
func (e *emitter[T]) subscribe(fn func(T)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.handlers = append(e.handlers, eventHandler[T]{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, h := range e.handlers {
			if h.id == id {
				e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
				return
			}
		}
	}
}

// emit calls every currently registered handler with v. The handler list is
// snapshotted under the lock and invoked outside it, so handlers may
// subscribe or unsubscribe without deadlocking.
func (e *emitter[T]) emit(v T) {
	e.mu.Lock()
	handlers := make([]eventHandler[T], len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	for _, h := range handlers {
		h.fn(v)
	}
}

// count returns the number of registered handlers.
func (e *emitter[T]) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}
