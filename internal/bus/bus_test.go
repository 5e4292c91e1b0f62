package bus_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/bus"
	"github.com/wardenhq/warden/internal/cache"
	"github.com/wardenhq/warden/internal/domain"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/result"
)

type ping struct{ N int }
type pong struct{ N int }

func TestDispatchRoutesByMessageType(t *testing.T) {
	b := bus.New()
	b.Register(ping{}, func(_ context.Context, _ *policy.Context, msg any) result.Result[any] {
		return result.Ok[any](msg.(ping).N * 2)
	})

	v, err := b.Dispatch(context.Background(), nil, ping{N: 21}).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestDispatchUnknownMessageFails(t *testing.T) {
	b := bus.New()
	res := b.Dispatch(context.Background(), nil, pong{})
	require.True(t, res.IsErr())
	assert.Contains(t, res.Err().Error(), "no handler registered")
}

func TestFactoryResolvedOncePerDispatch(t *testing.T) {
	b := bus.New()
	var built atomic.Int32
	b.RegisterFactory(ping{}, func() bus.Handler {
		built.Add(1)
		return func(context.Context, *policy.Context, any) result.Result[any] {
			return result.Ok[any](true)
		}
	})

	b.Dispatch(context.Background(), nil, ping{})
	b.Dispatch(context.Background(), nil, ping{})
	assert.Equal(t, int32(2), built.Load())
}

func TestMiddlewareOrderAndSingleComposition(t *testing.T) {
	b := bus.New()
	var order []string
	mw := func(name string) bus.Middleware {
		return func(next bus.Handler) bus.Handler {
			return func(ctx context.Context, rctx *policy.Context, msg any) result.Result[any] {
				order = append(order, name)
				return next(ctx, rctx, msg)
			}
		}
	}
	b.Use(mw("outer"), mw("inner"))
	b.Register(ping{}, func(context.Context, *policy.Context, any) result.Result[any] {
		order = append(order, "handler")
		return result.Ok[any](true)
	})

	b.Dispatch(context.Background(), nil, ping{})
	assert.Equal(t, []string{"outer", "inner", "handler"}, order)

	// DispatchDirect bypasses the chain entirely.
	order = nil
	b.DispatchDirect(context.Background(), nil, ping{})
	assert.Equal(t, []string{"handler"}, order)
}

func newBusCache(t *testing.T) (*cache.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewWithClient(client), mr
}

func listContext(user *domain.AuthUser) *policy.Context {
	return &policy.Context{
		User:        user,
		Method:      "GET",
		Path:        "/private/users",
		QueryParams: url.Values{"email": {"a@b.c"}, "page": {"1"}},
	}
}

func TestCacheMiddlewareReadThrough(t *testing.T) {
	c, _ := newBusCache(t)
	b := bus.New()
	b.Use(bus.CacheMiddleware(c, time.Minute))

	var calls atomic.Int32
	b.Register(ping{}, func(context.Context, *policy.Context, any) result.Result[any] {
		calls.Add(1)
		return result.Ok[any](map[string]string{"hello": "world"})
	})

	rctx := listContext(&domain.AuthUser{ID: uuid.New()})
	ctx := context.Background()

	first, err := b.Dispatch(ctx, rctx, ping{}).Unwrap()
	require.NoError(t, err)
	second, err := b.Dispatch(ctx, rctx, ping{}).Unwrap()
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load(), "second dispatch must come from cache")

	firstJSON, _ := json.Marshal(first)
	secondJSON, _ := json.Marshal(second)
	assert.JSONEq(t, string(firstJSON), string(secondJSON))
}

func TestCacheKeyVariesPerUser(t *testing.T) {
	rctx1 := listContext(&domain.AuthUser{ID: uuid.New()})
	rctx2 := listContext(&domain.AuthUser{ID: uuid.New()})
	assert.NotEqual(t, bus.CacheKey(rctx1), bus.CacheKey(rctx2))

	// Query encoding is canonical, so parameter order cannot split the key.
	reordered := listContext(rctx1.User)
	reordered.QueryParams = url.Values{"page": {"1"}, "email": {"a@b.c"}}
	assert.Equal(t, bus.CacheKey(rctx1), bus.CacheKey(reordered))
}

func TestInvalidateBumpsEpochAfterSuccessOnly(t *testing.T) {
	c, mr := newBusCache(t)
	b := bus.New()
	b.Use(bus.InvalidateMiddleware(c))

	b.Register(ping{}, func(context.Context, *policy.Context, any) result.Result[any] {
		return result.Ok[any](true)
	})
	b.Register(pong{}, func(context.Context, *policy.Context, any) result.Result[any] {
		return result.Err[any](errors.New("boom"))
	})

	ctx := context.Background()
	b.Dispatch(ctx, nil, ping{})
	epoch, err := mr.Get(bus.EpochKey)
	require.NoError(t, err)
	assert.Equal(t, "1", epoch)

	b.Dispatch(ctx, nil, pong{})
	epoch, err = mr.Get(bus.EpochKey)
	require.NoError(t, err)
	assert.Equal(t, "1", epoch, "failed handlers must not bump the epoch")
}

func TestEpochBumpInvalidatesReadThrough(t *testing.T) {
	c, _ := newBusCache(t)
	queries := bus.New()
	queries.Use(bus.CacheMiddleware(c, time.Minute))

	var calls atomic.Int32
	queries.Register(ping{}, func(context.Context, *policy.Context, any) result.Result[any] {
		calls.Add(1)
		return result.Ok[any]("v" + string(rune('0'+calls.Load())))
	})

	rctx := listContext(nil)
	ctx := context.Background()

	queries.Dispatch(ctx, rctx, ping{})
	queries.Dispatch(ctx, rctx, ping{})
	require.Equal(t, int32(1), calls.Load())

	_, err := c.Increment(ctx, bus.EpochKey, 1)
	require.NoError(t, err)

	queries.Dispatch(ctx, rctx, ping{})
	assert.Equal(t, int32(2), calls.Load(), "new epoch must miss the old namespace")
}

func TestEventBusPublishWaitsAndIsolatesFailures(t *testing.T) {
	eb := bus.NewEventBus()

	var mu sync.Mutex
	var seen []string
	eb.Subscribe(domain.PermissionsChanged{},
		func(context.Context, any) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, "first")
			return errors.New("subscriber failed")
		},
		func(context.Context, any) error {
			mu.Lock()
			defer mu.Unlock()
			seen = append(seen, "second")
			return nil
		},
	)

	eb.Publish(context.Background(), domain.PermissionsChanged{At: time.Now()})

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"first", "second"}, seen)
}

func TestEventBusWildcardOnlyWithoutTypedHandler(t *testing.T) {
	eb := bus.NewEventBus()

	var typed, wild atomic.Int32
	eb.Subscribe(domain.PermissionsChanged{}, func(context.Context, any) error {
		typed.Add(1)
		return nil
	})
	eb.SubscribeAny(func(context.Context, any) error {
		wild.Add(1)
		return nil
	})

	eb.Publish(context.Background(), domain.PermissionsChanged{})
	assert.Equal(t, int32(1), typed.Load())
	assert.Equal(t, int32(0), wild.Load())

	eb.Publish(context.Background(), "untyped event")
	assert.Equal(t, int32(1), wild.Load())
}

func TestEventBusRecoversPanics(t *testing.T) {
	eb := bus.NewEventBus()
	eb.Subscribe(ping{}, func(context.Context, any) error {
		panic("handler exploded")
	})

	assert.NotPanics(t, func() {
		eb.Publish(context.Background(), ping{})
	})
}
