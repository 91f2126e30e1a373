// Package events provides the in-process publish/subscribe bus the facets
// engine uses to decouple entry-point detection from parent stamping.
//
// The bus is an explicit dependency injected at construction; tests inject a
// recording bus and assert on published events. Dispatch is synchronous and
// in subscription order.
package events

import "sync"

// Handler receives the payload published for an event.
type Handler func(payload any)

// Bus is a named-event publish/subscribe contract.
type Bus interface {
	// Subscribe registers h for the named event.
	Subscribe(event string, h Handler)

	// Publish invokes every handler registered for the named event with
	// payload, synchronously, in subscription order.
	Publish(event string, payload any)
}

// MemoryBus is the default in-process Bus implementation.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates an empty MemoryBus.
func NewBus() *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]Handler)}
}

// Subscribe registers h for event.
func (b *MemoryBus) Subscribe(event string, h Handler) {
	b.mu.Lock()
	b.handlers[event] = append(b.handlers[event], h)
	b.mu.Unlock()
}

// Publish dispatches payload to every handler registered for event.
func (b *MemoryBus) Publish(event string, payload any) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}
