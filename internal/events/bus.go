package events

import (
	"sync"
	"time"
)

// Handler receives an emitted event.
type Handler func(Event)

// Bus is an in-process, synchronous publish/subscribe dispatcher keyed by
// EventType. Subscribers registered for a type are invoked in
// registration order; a subscription to "" (the zero EventType) receives
// every event regardless of type.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus builds an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers handler to run whenever eventType is emitted.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Emit builds an Event and dispatches it synchronously to every matching
// subscriber, then to every wildcard subscriber.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := Event{Type: eventType, Timestamp: time.Now(), Data: data, Module: module}

	b.mu.RLock()
	typed := append([]Handler(nil), b.handlers[eventType]...)
	wildcard := append([]Handler(nil), b.handlers[EventType("")]...)
	b.mu.RUnlock()

	for _, h := range typed {
		h(event)
	}
	for _, h := range wildcard {
		h(event)
	}
}
