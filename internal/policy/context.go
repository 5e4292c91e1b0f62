package policy

import (
	"context"
	"net/url"
	"sync"

	"github.com/wardenhq/warden/internal/apperr"
	"github.com/wardenhq/warden/internal/domain"
)

// MaxKeyDepth bounds the descent through nested request documents when
// collecting field names. Deeper payloads are rejected instead of walked.
const MaxKeyDepth = 15

// Context is the immutable record of request facts the authorization layer
// and handlers read from. It is built once by middleware and carried in the
// request context; the resolved user is attached after authentication.
type Context struct {
	User *domain.AuthUser

	RequestID   string
	Method      string
	Path        string
	URL         string
	PathParams  map[string]string
	QueryParams url.Values
	JSONParams  map[string]any

	pathKeys  keySet
	queryKeys keySet
	jsonKeys  keySet
}

// keySet memoizes one source's collected key names.
type keySet struct {
	once sync.Once
	keys map[string]struct{}
	err  error
}

// WithUser returns a copy of the context carrying the authenticated user.
func (c *Context) WithUser(user *domain.AuthUser) *Context {
	next := &Context{
		User:        user,
		RequestID:   c.RequestID,
		Method:      c.Method,
		Path:        c.Path,
		URL:         c.URL,
		PathParams:  c.PathParams,
		QueryParams: c.QueryParams,
		JSONParams:  c.JSONParams,
	}
	return next
}

// Keys returns the distinct top-level and nested key names present in the
// given request source. The walk is bounded by MaxKeyDepth; exceeding it
// fails as an unprocessable payload. The result is memoized per source.
func (c *Context) Keys(src domain.Source) (map[string]struct{}, error) {
	switch src {
	case domain.SourceQuery:
		c.queryKeys.once.Do(func() {
			keys := make(map[string]struct{}, len(c.QueryParams))
			for k := range c.QueryParams {
				keys[k] = struct{}{}
			}
			c.queryKeys.keys = keys
		})
		return c.queryKeys.keys, c.queryKeys.err
	case domain.SourceJSON:
		c.jsonKeys.once.Do(func() {
			c.jsonKeys.keys, c.jsonKeys.err = collectKeys(c.JSONParams)
		})
		return c.jsonKeys.keys, c.jsonKeys.err
	default:
		return nil, apperr.Internal("Unknown field source").WithContext("src", string(src))
	}
}

// PathKeys returns the path parameter names.
func (c *Context) PathKeys() map[string]struct{} {
	c.pathKeys.once.Do(func() {
		keys := make(map[string]struct{}, len(c.PathParams))
		for k := range c.PathParams {
			keys[k] = struct{}{}
		}
		c.pathKeys.keys = keys
	})
	return c.pathKeys.keys
}

// collectKeys gathers every map key reachable through maps and arrays within
// the depth bound.
func collectKeys(doc map[string]any) (map[string]struct{}, error) {
	keys := make(map[string]struct{}, len(doc))
	for k, v := range doc {
		keys[k] = struct{}{}
		if err := descend(v, 1, keys); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func descend(v any, depth int, keys map[string]struct{}) error {
	switch val := v.(type) {
	case map[string]any:
		if depth >= MaxKeyDepth {
			return apperr.Unprocessable("Request payload is nested too deeply").
				WithContext("max_depth", MaxKeyDepth)
		}
		for k, nested := range val {
			keys[k] = struct{}{}
			if err := descend(nested, depth+1, keys); err != nil {
				return err
			}
		}
	case []any:
		if depth >= MaxKeyDepth {
			return apperr.Unprocessable("Request payload is nested too deeply").
				WithContext("max_depth", MaxKeyDepth)
		}
		for _, item := range val {
			if err := descend(item, depth+1, keys); err != nil {
				return err
			}
		}
	}
	return nil
}

type ctxKey struct{}

// IntoContext stores the record in a request context.
func IntoContext(ctx context.Context, rc *Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext extracts the record. Returns nil when no middleware built one.
func FromContext(ctx context.Context) *Context {
	rc, _ := ctx.Value(ctxKey{}).(*Context)
	return rc
}
