package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/wardenhq/warden/internal/cache"
	"github.com/wardenhq/warden/internal/policy"
	"github.com/wardenhq/warden/internal/result"
)

// Epoch constants. The epoch is a monotonic counter bumped on every write;
// read-through keys are namespaced by it, so bumping it abandons all cached
// responses at once. The modulus keeps the key prefix bounded forever.
const (
	EpochKey     = "cache:epoch"
	epochModulus = 1_000_000

	// DefaultCacheTTL bounds the staleness window: entries written under an
	// abandoned epoch age out this fast.
	DefaultCacheTTL = 60 * time.Second
)

// CacheKey derives the read-through key body from the request facts. Query
// parameters arrive canonically sorted through url.Values.Encode.
func CacheKey(rctx *policy.Context) string {
	key := rctx.Method + rctx.Path + rctx.QueryParams.Encode()
	if rctx.User != nil {
		key += rctx.User.ID.String()
	}
	return key
}

// CacheMiddleware serves query responses from the epoch-indexed cache.
// Cache failures are logged and fall through to the handler: a degraded
// cache slows reads down, it never fails them.
func CacheMiddleware(c cache.Cache, ttl time.Duration) Middleware {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, rctx *policy.Context, msg any) result.Result[any] {
			if rctx == nil {
				return next(ctx, rctx, msg)
			}
			key := strconv.FormatInt(currentEpoch(ctx, c), 10) + ":" + CacheKey(rctx)

			if hit, err := c.Get(ctx, key); err != nil {
				slog.Warn("response_cache_read_failed", "key", key, "error", err)
			} else if hit != "" {
				return result.Ok[any](json.RawMessage(hit))
			}

			res := next(ctx, rctx, msg)
			if value, err := res.Unwrap(); err == nil && value != nil {
				if body, err := json.Marshal(value); err == nil && string(body) != "null" {
					if err := c.Set(ctx, key, string(body), ttl); err != nil {
						slog.Warn("response_cache_write_failed", "key", key, "error", err)
					}
				}
			}
			return res
		}
	}
}

// InvalidateMiddleware bumps the epoch after a successful write, moving all
// readers onto a fresh key namespace. Failed handlers leave the epoch alone.
func InvalidateMiddleware(c cache.Cache) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, rctx *policy.Context, msg any) result.Result[any] {
			res := next(ctx, rctx, msg)
			if res.IsOk() {
				if epoch, err := c.Increment(ctx, EpochKey, 1); err != nil {
					slog.Warn("epoch_bump_failed", "error", err)
				} else {
					slog.Debug("epoch_bumped", "epoch", epoch)
				}
			}
			return res
		}
	}
}

func currentEpoch(ctx context.Context, c cache.Cache) int64 {
	raw, err := c.Get(ctx, EpochKey)
	if err != nil {
		slog.Warn("epoch_read_failed", "error", err)
		return 0
	}
	epoch, _ := strconv.ParseInt(raw, 10, 64)
	return epoch % epochModulus
}
