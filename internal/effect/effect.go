package effect

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Call is what an executed action asks the handler to do.
type Call struct {
	Target  string
	Value   uint64
	Payload []byte
}

// Handler performs the effect of an executed action.
type Handler interface {
	Invoke(ctx context.Context, call Call) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, call Call) error

// Invoke calls f.
func (f HandlerFunc) Invoke(ctx context.Context, call Call) error {
	return f(ctx, call)
}

// Noop accepts every call and does nothing.
var Noop Handler = HandlerFunc(func(context.Context, Call) error { return nil })

// ErrNoRoute is returned by a Mux with no handler for the call's target.
var ErrNoRoute = errors.New("no handler for target")

// Mux routes calls to handlers registered per target.
type Mux struct {
	mu       sync.RWMutex
	routes   map[string]Handler
	fallback Handler
}

// NewMux creates a mux. A nil fallback makes unrouted targets fail.
func NewMux(fallback Handler) *Mux {
	return &Mux{
		routes:   make(map[string]Handler),
		fallback: fallback,
	}
}

// Handle registers h for target, replacing any earlier registration.
func (m *Mux) Handle(target string, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[target] = h
}

// Invoke dispatches call to the handler registered for its target.
func (m *Mux) Invoke(ctx context.Context, call Call) error {
	m.mu.RLock()
	h, ok := m.routes[call.Target]
	if !ok {
		h = m.fallback
	}
	m.mu.RUnlock()

	if h == nil {
		return fmt.Errorf("%w: %s", ErrNoRoute, call.Target)
	}
	return h.Invoke(ctx, call)
}
