package policy

import (
	"context"
	"sort"
	"strings"

	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/domain"
)

// Failure messages shared by every resolver.
const (
	msgFieldsDenied = "Some request fields are not allowed for your role."
	msgScopeDenied  = "You are not allowed to access this resource."
)

// FieldResolver validates the request's field names against the caller's
// effective permission. A nil resolver allows everything.
type FieldResolver func(perm *domain.EffectivePermission, rctx *Context) error

// ScopeResolver enforces the granted scope against the request. The gateway
// is available for resolvers that need a lookup; the bundled ones do not.
type ScopeResolver func(ctx context.Context, gw domain.Gateway, rctx *Context, scope domain.Scope) error

// checked are the sources field policies read from.
var checkedSources = []domain.Source{domain.SourceQuery, domain.SourceJSON}

// AllowAll performs no field checks.
func AllowAll(*domain.EffectivePermission, *Context) error { return nil }

// DenyList forbids the request when any present field is explicitly denied.
func DenyList(perm *domain.EffectivePermission, rctx *Context) error {
	for _, src := range checkedSources {
		present, err := rctx.Keys(src)
		if err != nil {
			return err
		}
		if hit := intersect(present, perm.DenyFields[src]); len(hit) > 0 {
			return fieldsDenied(src, hit)
		}
	}
	return nil
}

// AllowList forbids the request when any present field is outside the
// allowed set.
func AllowList(perm *domain.EffectivePermission, rctx *Context) error {
	for _, src := range checkedSources {
		present, err := rctx.Keys(src)
		if err != nil {
			return err
		}
		if extra := subtract(present, perm.AllowFields[src]); len(extra) > 0 {
			return fieldsDenied(src, extra)
		}
	}
	return nil
}

// Mixed applies the deny list first, then the allow list.
func Mixed(perm *domain.EffectivePermission, rctx *Context) error {
	if err := DenyList(perm, rctx); err != nil {
		return err
	}
	return AllowList(perm, rctx)
}

// ScopeByUserID restricts OWN grants to the caller's own user_id path
// parameter.
func ScopeByUserID(_ context.Context, _ domain.Gateway, rctx *Context, scope domain.Scope) error {
	if scope != domain.ScopeOwn {
		return nil
	}
	if rctx.User != nil && rctx.PathParams["user_id"] == rctx.User.ID.String() {
		return nil
	}
	return scopeDenied(rctx)
}

// ScopeByUserEmail restricts OWN grants to listings filtered to the caller's
// own email, compared case-insensitively.
func ScopeByUserEmail(_ context.Context, _ domain.Gateway, rctx *Context, scope domain.Scope) error {
	if scope != domain.ScopeOwn {
		return nil
	}
	email := rctx.QueryParams.Get("email")
	if rctx.User != nil && email != "" && strings.EqualFold(email, rctx.User.Email) {
		return nil
	}
	return scopeDenied(rctx)
}

func fieldsDenied(src domain.Source, fields []string) error {
	sort.Strings(fields)
	return apperr.Forbidden(msgFieldsDenied).
		WithContext("source", string(src)).
		WithContext("fields", fields)
}

func scopeDenied(rctx *Context) error {
	return apperr.Forbidden(msgScopeDenied).
		WithContext("path", rctx.Path).
		WithContext("method", rctx.Method).
		WithContext("request_id", rctx.RequestID)
}

func intersect(present map[string]struct{}, constrained []string) []string {
	var out []string
	for _, name := range constrained {
		if _, ok := present[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func subtract(present map[string]struct{}, allowed []string) []string {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = struct{}{}
	}
	var out []string
	for name := range present {
		if _, ok := allowedSet[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}
