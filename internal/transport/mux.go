package transport

import (
	"encoding/json"
	"sync"
)

// Handler receives the data of one named event.
type Handler func(data json.RawMessage)

// Mux holds at most one handler per event name. Installing a handler for an
// event that already has one replaces it.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{handlers: make(map[string]Handler)}
}

// On installs h as the handler for event.
func (m *Mux) On(event string, h Handler) {
	if h == nil {
		m.Off(event)
		return
	}
	m.mu.Lock()
	m.handlers[event] = h
	m.mu.Unlock()
}

// Off removes the handler for event. Removing an absent handler is a no-op.
func (m *Mux) Off(event string) {
	m.mu.Lock()
	delete(m.handlers, event)
	m.mu.Unlock()
}

// HandlerCount reports how many handlers are installed for event (0 or 1).
func (m *Mux) HandlerCount(event string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.handlers[event]; ok {
		return 1
	}
	return 0
}

// Dispatch runs the handler installed for event at call time and reports
// whether one was found. The handler runs on the caller's goroutine.
func (m *Mux) Dispatch(event string, data json.RawMessage) bool {
	m.mu.RLock()
	h, ok := m.handlers[event]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	h(data)
	return true
}
