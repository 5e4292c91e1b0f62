// Package cache provides the key/value and list operations the application
// needs from its shared cache, plus a distributed lock built on the same
// backend. Misses are not errors: Get returns the empty string and GetList
// an empty slice.
package cache

import (
	"context"
	"errors"
	"time"
)

// NoExpiry keeps a key alive until explicitly deleted.
const NoExpiry time.Duration = 0

// ErrUnavailable wraps backend failures so callers can map them to a
// service-unavailable response without inspecting driver errors.
var ErrUnavailable = errors.New("cache unavailable")

// Cache is the application-facing contract. Keys containing '*' are treated
// as glob patterns by Delete and Exists.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	SetList(ctx context.Context, key string, ttl time.Duration, values ...string) error
	GetList(ctx context.Context, key string) ([]string, error)
	Discard(ctx context.Context, key, value string) error

	Exists(ctx context.Context, pattern string) (bool, error)
	Keys(ctx context.Context) ([]string, error)

	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Decrement(ctx context.Context, key string, delta int64) (int64, error)

	Clear(ctx context.Context) error
	Close() error
}
