package inbound

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-githubapp/core"
)

// WildcardKey matches every delivery regardless of event name.
const WildcardKey = "*"

// Verifier checks a delivery's signature before dispatch. Implementations
// live outside this module; a nil verifier skips the check.
type Verifier interface {
	Verify(ctx context.Context, headers map[string]string, payload []byte) error
}

// Handler reacts to one webhook event.
type Handler func(ctx context.Context, event Event) error

// Dispatcher routes verified deliveries to handlers registered for
// "name", "name.action", or the wildcard. Handlers for one event run
// sequentially in registration order.
type Dispatcher struct {
	Verifier Verifier
	Logger   core.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewDispatcher(verifier Verifier, logger core.Logger) *Dispatcher {
	return &Dispatcher{
		Verifier: verifier,
		Logger:   logger,
		handlers: map[string][]Handler{},
	}
}

func (d *Dispatcher) On(key string, handler Handler) error {
	if d == nil {
		return core.BadConfigError("inbound: dispatcher is nil", nil)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return core.BadConfigError("inbound: handler key is required", nil)
	}
	if handler == nil {
		return core.BadConfigError("inbound: handler is required", map[string]any{"key": key})
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.handlers == nil {
		d.handlers = map[string][]Handler{}
	}
	d.handlers[key] = append(d.handlers[key], handler)
	return nil
}

// Dispatch verifies the delivery, parses it, and runs every matching
// handler. Handler failures do not short-circuit later handlers; the
// joined error is returned to the caller.
func (d *Dispatcher) Dispatch(ctx context.Context, headers map[string]string, payload []byte) (Event, error) {
	if d == nil {
		return Event{}, core.BadConfigError("inbound: dispatcher is nil", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if d.Verifier != nil {
		if err := d.Verifier.Verify(ctx, headers, payload); err != nil {
			return Event{}, core.AuthenticationError(
				"inbound: delivery signature rejected: "+err.Error(),
				nil,
			)
		}
	}

	event, err := ParseEvent(headers, payload)
	if err != nil {
		return Event{}, err
	}

	handlers := d.match(event)
	if len(handlers) == 0 {
		d.logDebug("inbound: no handler for delivery", "delivery_id", event.DeliveryID, "key", event.Key())
		return event, nil
	}

	var dispatchErr error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			dispatchErr = errors.Join(dispatchErr, fmt.Errorf("inbound: handler for %q: %w", event.Key(), err))
		}
	}
	return event, dispatchErr
}

func (d *Dispatcher) match(event Event) []Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var matched []Handler
	matched = append(matched, d.handlers[event.Name]...)
	if key := event.Key(); key != event.Name {
		matched = append(matched, d.handlers[key]...)
	}
	matched = append(matched, d.handlers[WildcardKey]...)
	return matched
}

func (d *Dispatcher) logDebug(message string, args ...any) {
	if d == nil || d.Logger == nil {
		return
	}
	d.Logger.Debug(message, args...)
}
