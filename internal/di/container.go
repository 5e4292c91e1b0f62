// Package di provides a type-keyed dependency registry with per-request
// scopes. Values resolve as-is, func providers are called per scope, and
// scoped providers additionally hand back a release that runs when the
// scope closes. A string name works as a fallback key when one type has
// several registrations.
package di

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// ProviderKind discriminates how a registration produces its value, so a
// resolve never has to re-inspect the registration.
type ProviderKind int

const (
	KindValue ProviderKind = iota
	KindFunc
	KindScoped
)

type provider struct {
	kind   ProviderKind
	value  any
	fn     func(ctx context.Context) (any, error)
	scoped func(ctx context.Context) (any, func(), error)
}

// Container is the process-wide registry. Registration happens during
// startup; resolution through scopes is safe for concurrent use.
type Container struct {
	mu         sync.RWMutex
	byType     map[reflect.Type]*provider
	byName     map[string]*provider
	generation atomic.Uint64
}

func NewContainer() *Container {
	return &Container{
		byType: make(map[reflect.Type]*provider),
		byName: make(map[string]*provider),
	}
}

func (c *Container) register(t reflect.Type, name string, p *provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name != "" {
		c.byName[name] = p
		return
	}
	c.byType[t] = p
}

func (c *Container) lookup(t reflect.Type, name string) *provider {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name != "" {
		return c.byName[name]
	}
	return c.byType[t]
}

// Reset drops every registration and bumps the generation so open scopes
// stop serving stale cached resolutions.
func (c *Container) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byType = make(map[reflect.Type]*provider)
	c.byName = make(map[string]*provider)
	c.generation.Add(1)
}

// Provide registers a ready value under its type.
func Provide[T any](c *Container, value T) {
	c.register(reflect.TypeFor[T](), "", &provider{kind: KindValue, value: value})
}

// ProvideNamed registers a ready value under a name.
func ProvideNamed[T any](c *Container, name string, value T) {
	c.register(reflect.TypeFor[T](), name, &provider{kind: KindValue, value: value})
}

// ProvideFunc registers a factory invoked once per scope.
func ProvideFunc[T any](c *Container, fn func(ctx context.Context) (T, error)) {
	c.register(reflect.TypeFor[T](), "", &provider{
		kind: KindFunc,
		fn:   func(ctx context.Context) (any, error) { return fn(ctx) },
	})
}

// ProvideScoped registers a factory whose release runs on scope close.
func ProvideScoped[T any](c *Container, fn func(ctx context.Context) (T, func(), error)) {
	c.register(reflect.TypeFor[T](), "", &provider{
		kind: KindScoped,
		scoped: func(ctx context.Context) (any, func(), error) {
			return fn(ctx)
		},
	})
}

// ProvideScopedNamed registers a scoped factory under a name.
func ProvideScopedNamed[T any](c *Container, name string, fn func(ctx context.Context) (T, func(), error)) {
	c.register(reflect.TypeFor[T](), name, &provider{
		kind: KindScoped,
		scoped: func(ctx context.Context) (any, func(), error) {
			return fn(ctx)
		},
	})
}

// Scope resolves and caches dependencies for one request, releasing scoped
// resources in reverse acquisition order when closed.
type Scope struct {
	container  *Container
	generation uint64

	mu       sync.Mutex
	cache    map[*provider]any
	releases []func()
	closed   bool
}

// NewScope opens a scope bound to the container's current generation.
func (c *Container) NewScope() *Scope {
	return &Scope{
		container:  c,
		generation: c.generation.Load(),
		cache:      make(map[*provider]any),
	}
}

func (s *Scope) resolve(ctx context.Context, t reflect.Type, name string) (any, error) {
	p := s.container.lookup(t, name)
	if p == nil {
		if name != "" {
			return nil, fmt.Errorf("no provider registered for name %q", name)
		}
		return nil, fmt.Errorf("no provider registered for %s", t)
	}

	if p.kind == KindValue {
		return p.value, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("scope is closed")
	}

	// A container reset invalidates everything resolved so far.
	if gen := s.container.generation.Load(); gen != s.generation {
		s.generation = gen
		s.cache = make(map[*provider]any)
	}
	if cached, ok := s.cache[p]; ok {
		return cached, nil
	}

	var value any
	var err error
	switch p.kind {
	case KindFunc:
		value, err = p.fn(ctx)
	case KindScoped:
		var release func()
		value, release, err = p.scoped(ctx)
		if err == nil && release != nil {
			s.releases = append(s.releases, release)
		}
	}
	if err != nil {
		return nil, err
	}
	s.cache[p] = value
	return value, nil
}

// Close releases scoped resources LIFO. Safe to call more than once.
func (s *Scope) Close() {
	s.mu.Lock()
	releases := s.releases
	s.releases = nil
	s.closed = true
	s.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}

// Resolve returns the scope's instance of T.
func Resolve[T any](ctx context.Context, s *Scope) (T, error) {
	return resolveAs[T](ctx, s, "")
}

// ResolveNamed returns the scope's instance registered under name.
func ResolveNamed[T any](ctx context.Context, s *Scope, name string) (T, error) {
	return resolveAs[T](ctx, s, name)
}

func resolveAs[T any](ctx context.Context, s *Scope, name string) (T, error) {
	var zero T
	raw, err := s.resolve(ctx, reflect.TypeFor[T](), name)
	if err != nil {
		return zero, err
	}
	value, ok := raw.(T)
	if !ok {
		return zero, fmt.Errorf("provider for %q yields %T, not %s", name, raw, reflect.TypeFor[T]())
	}
	return value, nil
}

type scopeKey struct{}

// IntoContext threads the scope through a request context.
func IntoContext(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom extracts the request scope. Returns nil outside a scoped
// request.
func ScopeFrom(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}
