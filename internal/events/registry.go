package events

import (
	"sync"

	"github.com/google/uuid"
)

// Registry fans session-change callbacks out to subscribers. Callbacks run
// synchronously on the publishing goroutine, so subscribers must not call
// back into the manager.
type Registry struct {
	mu          sync.RWMutex
	subscribers map[string]func(Event)
}

func NewRegistry() *Registry {
	return &Registry{
		subscribers: make(map[string]func(Event)),
	}
}

// Subscribe registers fn and returns its cancel function. Cancel is
// idempotent.
func (r *Registry) Subscribe(fn func(Event)) func() {
	if fn == nil {
		return func() {}
	}

	id := uuid.NewString()

	r.mu.Lock()
	r.subscribers[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subscribers, id)
		r.mu.Unlock()
	}
}

// Publish invokes every subscriber with event. The subscriber list is copied
// under the lock so callbacks may subscribe or cancel without deadlocking.
func (r *Registry) Publish(event Event) {
	r.mu.RLock()
	fns := make([]func(Event), 0, len(r.subscribers))
	for _, fn := range r.subscribers {
		fns = append(fns, fn)
	}
	r.mu.RUnlock()

	for _, fn := range fns {
		fn(event)
	}
}
