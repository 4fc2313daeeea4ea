// Package registry holds the static event-type → handler mapping the
// consumer dispatches through. It is built once at startup and passed
// by reference; there is no runtime unregistration.
package registry

import (
	"context"
	"fmt"

	session "github.com/adrijh/echo-lib/pkg/schemas/session/v1"
)

// Handler processes one decoded event.
type Handler interface {
	Handle(ctx context.Context, ev session.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev session.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev session.Event) error { return f(ctx, ev) }

type Registry struct {
	handlers map[session.EventType][]Handler
}

func New() *Registry {
	return &Registry{handlers: make(map[session.EventType][]Handler)}
}

// Register appends h to the handler list for t. Handlers run in
// registration order.
func (r *Registry) Register(t session.EventType, h Handler) {
	r.handlers[t] = append(r.handlers[t], h)
}

func (r *Registry) RegisterFunc(t session.EventType, f func(ctx context.Context, ev session.Event) error) {
	r.Register(t, HandlerFunc(f))
}

// Dispatch invokes every handler registered for the event's type,
// sequentially and in registration order. The first handler error stops
// the chain; the remaining handlers for that event do not run.
// Dispatch with no registered handlers is a no-op.
func (r *Registry) Dispatch(ctx context.Context, ev session.Event) error {
	for i, h := range r.handlers[ev.Kind()] {
		if err := h.Handle(ctx, ev); err != nil {
			return fmt.Errorf("handler %d for %s: %w", i, ev.Kind(), err)
		}
	}
	return nil
}
