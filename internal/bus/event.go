package bus

import (
	"context"
	"log/slog"
	"reflect"
	"sync"
)

// EventHandler consumes one published event. Errors are logged, never
// propagated to the publisher.
type EventHandler func(ctx context.Context, event any) error

// EventBus delivers fire-and-forget notifications. Handlers registered for
// an event's concrete type run on every publish; wildcard handlers only run
// for events no typed handler covers.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[reflect.Type][]EventHandler
	wildcard []EventHandler
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[reflect.Type][]EventHandler)}
}

// Subscribe registers handlers for the event's concrete type.
func (b *EventBus) Subscribe(event any, handlers ...EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf(event)
	b.handlers[t] = append(b.handlers[t], handlers...)
}

// SubscribeAny registers handlers for events without a typed subscription.
func (b *EventBus) SubscribeAny(handlers ...EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, handlers...)
}

// Publish runs every matching handler concurrently and waits for all of
// them. Handler panics are recovered; failures are logged and swallowed so
// one subscriber cannot break another or the publisher.
func (b *EventBus) Publish(ctx context.Context, event any) {
	b.mu.RLock()
	handlers := b.handlers[reflect.TypeOf(event)]
	if len(handlers) == 0 {
		handlers = b.wildcard
	}
	b.mu.RUnlock()

	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Add(1)
		go func(h EventHandler) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("event_handler_panicked", "event", reflect.TypeOf(event).String(), "panic", rec)
				}
			}()
			if err := h(ctx, event); err != nil {
				slog.Error("event_handler_failed", "event", reflect.TypeOf(event).String(), "error", err)
			}
		}(h)
	}
	wg.Wait()
}
