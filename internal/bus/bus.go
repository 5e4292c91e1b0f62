// Package bus dispatches command and query messages to their registered
// handlers through a middleware chain, and carries the epoch-indexed
// response cache that rides on that chain.
package bus

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/result"
)

// Handler processes one message. The request context record carries the
// authenticated user and request facts; the message carries the payload.
type Handler func(ctx context.Context, rctx *policy.Context, msg any) result.Result[any]

// Middleware wraps a handler. The chain is composed once, not per dispatch.
type Middleware func(next Handler) Handler

// HandlerFactory builds a handler lazily. It is invoked at most once per
// dispatch.
type HandlerFactory func() Handler

type entry struct {
	handler Handler
	factory HandlerFactory
}

// Bus routes messages by their concrete type. Registration and Use happen
// during startup; Dispatch is safe for concurrent use afterwards.
type Bus struct {
	mu          sync.RWMutex
	entries     map[reflect.Type]entry
	middlewares []Middleware

	composeOnce sync.Once
	chain       Handler
}

func New() *Bus {
	return &Bus{entries: make(map[reflect.Type]entry)}
}

// Register binds a handler to the message's concrete type.
func (b *Bus) Register(msg any, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[reflect.TypeOf(msg)] = entry{handler: h}
}

// RegisterFactory binds a lazily built handler to the message type.
func (b *Bus) RegisterFactory(msg any, f HandlerFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[reflect.TypeOf(msg)] = entry{factory: f}
}

// Use appends a middleware. Must be called before the first dispatch; the
// outermost middleware is the first one added.
func (b *Bus) Use(mw ...Middleware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.middlewares = append(b.middlewares, mw...)
}

// Dispatch runs the message through the middleware chain into its handler.
func (b *Bus) Dispatch(ctx context.Context, rctx *policy.Context, msg any) result.Result[any] {
	b.composeOnce.Do(b.compose)
	return b.chain(ctx, rctx, msg)
}

// DispatchDirect invokes the handler without the middleware chain. Auth
// flows use it so credential requests never touch the response cache.
func (b *Bus) DispatchDirect(ctx context.Context, rctx *policy.Context, msg any) result.Result[any] {
	return b.resolve(ctx, rctx, msg)
}

func (b *Bus) compose() {
	h := b.resolve
	for i := len(b.middlewares) - 1; i >= 0; i-- {
		h = b.middlewares[i](h)
	}
	b.chain = h
}

// resolve finds the entry for the message's concrete type at call time, so
// middlewares compose over one chain regardless of message type.
func (b *Bus) resolve(ctx context.Context, rctx *policy.Context, msg any) result.Result[any] {
	b.mu.RLock()
	e, ok := b.entries[reflect.TypeOf(msg)]
	b.mu.RUnlock()
	if !ok {
		return result.Err[any](fmt.Errorf("no handler registered for %T", msg))
	}
	if e.handler != nil {
		return e.handler(ctx, rctx, msg)
	}
	return e.factory()(ctx, rctx, msg)
}
