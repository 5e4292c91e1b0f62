package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wardenhq/warden/internal/config"
)

// Redis implements Cache on a go-redis client.
type Redis struct {
	client redis.UniversalClient
}

var _ Cache = (*Redis)(nil)

// New connects to the configured Redis server and verifies the connection.
func New(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", wrap("get", err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return wrap("set", err)
	}
	return nil
}

// Delete removes keys. Any key containing '*' is expanded by scanning.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	var patterns, plain []string
	for _, k := range keys {
		if strings.Contains(k, "*") {
			patterns = append(patterns, k)
		} else {
			plain = append(plain, k)
		}
	}

	for _, pattern := range patterns {
		iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
		for iter.Next(ctx) {
			plain = append(plain, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return wrap("scan", err)
		}
	}

	if len(plain) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, plain...).Err(); err != nil {
		return wrap("del", err)
	}
	return nil
}

// SetList pushes values onto the list and refreshes its TTL in one pipeline.
func (r *Redis) SetList(ctx context.Context, key string, ttl time.Duration, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, key, args...)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return wrap("lpush", err)
	}
	return nil
}

func (r *Redis) GetList(ctx context.Context, key string) ([]string, error) {
	vals, err := r.client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, wrap("lrange", err)
	}
	return vals, nil
}

// Discard removes every occurrence of value from the list.
func (r *Redis) Discard(ctx context.Context, key, value string) error {
	if err := r.client.LRem(ctx, key, 0, value).Err(); err != nil {
		return wrap("lrem", err)
	}
	return nil
}

// Exists reports whether at least one key matches the pattern.
func (r *Redis) Exists(ctx context.Context, pattern string) (bool, error) {
	if !strings.Contains(pattern, "*") {
		n, err := r.client.Exists(ctx, pattern).Result()
		if err != nil {
			return false, wrap("exists", err)
		}
		return n > 0, nil
	}
	iter := r.client.Scan(ctx, 0, pattern, 1).Iterator()
	if iter.Next(ctx) {
		return true, nil
	}
	if err := iter.Err(); err != nil {
		return false, wrap("scan", err)
	}
	return false, nil
}

func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	keys, err := r.client.Keys(ctx, "*").Result()
	if err != nil {
		return nil, wrap("keys", err)
	}
	return keys, nil
}

func (r *Redis) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := r.client.IncrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, wrap("incrby", err)
	}
	return n, nil
}

func (r *Redis) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	n, err := r.client.DecrBy(ctx, key, delta).Result()
	if err != nil {
		return 0, wrap("decrby", err)
	}
	return n, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.FlushAllAsync(ctx).Err(); err != nil {
		return wrap("flushall", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func wrap(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
