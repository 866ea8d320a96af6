package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
)

// ErrClosed is returned when dispatching on a closed dispatcher
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher routes events to registered handlers.
//
// Synchronous handlers run inline in subscription order, so consecutive
// Dispatch calls reach them in emission order. Async handlers run on their
// own goroutine per event and must not depend on ordering.
type Dispatcher interface {
	// Subscribe registers a synchronous handler for an event type
	Subscribe(eventType event.Type, handler Handler)

	// SubscribeNamed registers a synchronous handler with a name
	SubscribeNamed(eventType event.Type, name string, handler Handler)

	// SubscribeAll registers a synchronous handler for every event type
	SubscribeAll(name string, handler Handler)

	// SubscribeAsync registers a named handler that runs off the caller's goroutine
	SubscribeAsync(eventType event.Type, name string, handler Handler)

	// Unsubscribe removes a handler by name; empty eventType targets SubscribeAll handlers
	Unsubscribe(eventType event.Type, name string)

	// Dispatch delivers evt to every matching handler. A failing handler does
	// not stop the others; their errors are joined.
	Dispatch(ctx context.Context, evt *event.Event) error

	// ListHandlers returns registered handlers for an event type
	ListHandlers(eventType event.Type) []HandlerInfo

	// Close rejects further dispatches and waits for async handlers
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// eventDispatcher is the concrete implementation of Dispatcher
type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	wildcard []HandlerInfo
	seq      int
	logger   Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) {
		d.logger = logger
	}
}

// NewDispatcher creates a new event dispatcher
func NewDispatcher(opts ...Option) Dispatcher {
	d := &eventDispatcher{
		handlers: make(map[event.Type][]HandlerInfo),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Subscribe registers a handler for an event type with an auto-generated name
func (d *eventDispatcher) Subscribe(eventType event.Type, handler Handler) {
	d.mu.Lock()
	d.seq++
	name := fmt.Sprintf("handler-%d", d.seq)
	d.mu.Unlock()

	d.SubscribeNamed(eventType, name, handler)
}

// SubscribeNamed registers a handler with a specific name
func (d *eventDispatcher) SubscribeNamed(eventType event.Type, name string, handler Handler) {
	d.add(HandlerInfo{Name: name, EventType: eventType, Handler: handler})
}

// SubscribeAll registers a handler that receives every event
func (d *eventDispatcher) SubscribeAll(name string, handler Handler) {
	d.add(HandlerInfo{Name: name, Handler: handler})
}

// SubscribeAsync registers a handler executed on a tracked goroutine
func (d *eventDispatcher) SubscribeAsync(eventType event.Type, name string, handler Handler) {
	d.add(HandlerInfo{Name: name, EventType: eventType, Handler: handler, Async: true})
}

func (d *eventDispatcher) add(info HandlerInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if info.EventType == "" {
		d.wildcard = append(d.wildcard, info)
	} else {
		d.handlers[info.EventType] = append(d.handlers[info.EventType], info)
	}

	if d.logger != nil {
		d.logger.Info("Handler registered",
			"event_type", info.EventType,
			"handler_name", info.Name,
			"async", info.Async,
		)
	}
}

// Unsubscribe removes a handler by name
func (d *eventDispatcher) Unsubscribe(eventType event.Type, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if eventType == "" {
		d.wildcard = without(d.wildcard, name)
	} else {
		d.handlers[eventType] = without(d.handlers[eventType], name)
	}

	if d.logger != nil {
		d.logger.Info("Handler unregistered",
			"event_type", eventType,
			"handler_name", name,
		)
	}
}

func without(handlers []HandlerInfo, name string) []HandlerInfo {
	filtered := make([]HandlerInfo, 0, len(handlers))
	for _, h := range handlers {
		if h.Name != name {
			filtered = append(filtered, h)
		}
	}
	return filtered
}

// Dispatch sends event to all matching handlers
func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return ErrClosed
	}

	handlers := d.match(evt.Type)

	var errs []error
	for _, info := range handlers {
		if info.Async {
			d.runAsync(ctx, evt, info)
			continue
		}
		if err := d.safeExecute(ctx, evt, info); err != nil {
			if d.logger != nil {
				d.logger.Error("Handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.Name,
					"error", err,
				)
			}
			errs = append(errs, fmt.Errorf("handler %s failed: %w", info.Name, err))
		}
	}

	return errors.Join(errs...)
}

// match returns wildcard handlers followed by type-specific ones
func (d *eventDispatcher) match(eventType event.Type) []HandlerInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]HandlerInfo, 0, len(d.wildcard)+len(d.handlers[eventType]))
	out = append(out, d.wildcard...)
	out = append(out, d.handlers[eventType]...)
	return out
}

func (d *eventDispatcher) runAsync(ctx context.Context, evt *event.Event, info HandlerInfo) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		// detach from the request so slow sinks outlive it
		if err := d.safeExecute(context.WithoutCancel(ctx), evt, info); err != nil && d.logger != nil {
			d.logger.Error("Async handler error",
				"event_type", evt.Type,
				"event_id", evt.ID,
				"handler_name", info.Name,
				"error", err,
			)
		}
	}()
}

// ListHandlers returns registered handlers for an event type, including wildcard ones
func (d *eventDispatcher) ListHandlers(eventType event.Type) []HandlerInfo {
	handlers := d.match(eventType)
	result := make([]HandlerInfo, len(handlers))

	for i, h := range handlers {
		result[i] = HandlerInfo{
			Name:      h.Name,
			EventType: h.EventType,
			Async:     h.Async,
		}
	}

	return result
}

// Close shuts down the dispatcher and waits for async handlers to complete
func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}

	if d.logger != nil {
		d.logger.Info("Closing dispatcher, waiting for async handlers")
	}

	d.wg.Wait()

	if d.logger != nil {
		d.logger.Info("Dispatcher closed")
	}

	return nil
}

// safeExecute runs a handler with panic recovery
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			if d.logger != nil {
				d.logger.Error("Handler panic recovered",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", info.Name,
					"panic", r,
				)
			}
		}
	}()

	return info.Handler(ctx, evt)
}
