package policy

import (
	"sync"
)

// RouteRule binds a permission spec to the checks enforced on its route.
// Nil checks allow unconditionally.
type RouteRule struct {
	Permission  PermissionSpec
	CheckScope  ScopeResolver
	CheckFields FieldResolver
}

// Registry collects the rules attached at route registration. The auth
// middleware looks rules up per request; the bootstrapper walks all of them
// once at startup.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]*RouteRule
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]*RouteRule)}
}

// Add registers the rule for a method and chi route pattern. Re-registering
// the same route replaces the rule.
func (r *Registry) Add(method, pattern string, rule *RouteRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[method+" "+pattern] = rule
}

// Lookup returns the rule for the routed pattern, or nil for unruled routes.
func (r *Registry) Lookup(method, pattern string) *RouteRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules[method+" "+pattern]
}

// All snapshots the registered rules.
func (r *Registry) All() []*RouteRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*RouteRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	return out
}
