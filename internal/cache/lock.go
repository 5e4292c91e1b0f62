package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lock errors.
var (
	ErrLockTimeout = errors.New("lock acquisition timed out")
	ErrLockNotHeld = errors.New("lock not held")
)

const acquireRetryInterval = 100 * time.Millisecond

// releaseScript deletes the lock key only while it still holds our token,
// so an expired lock reacquired by another holder is never released here.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Lock is a single-holder lease on a cache key. The lease expires on its own
// after the timeout, so a crashed holder cannot block others forever.
type Lock struct {
	client redis.UniversalClient
	key    string
	token  string
	lease  time.Duration
}

// Lock builds a lock on the given key with the lease as its timeout. The
// lock is not taken until Acquire succeeds.
func (r *Redis) Lock(name string, timeout time.Duration) *Lock {
	return &Lock{
		client: r.client,
		key:    name,
		token:  uuid.NewString(),
		lease:  timeout,
	}
}

// Acquire takes the lock, blocking up to twice the lease before giving up
// with ErrLockTimeout. Context cancellation aborts the wait.
func (l *Lock) Acquire(ctx context.Context) error {
	deadline := time.Now().Add(2 * l.lease)
	for {
		ok, err := l.client.SetNX(ctx, l.key, l.token, l.lease).Result()
		if err != nil {
			return wrap("setnx", err)
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquireRetryInterval):
		}
	}
}

// Release frees the lock if this instance still holds it.
func (l *Lock) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Int()
	if err != nil {
		return wrap("release", err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// Locked reports whether any holder currently owns the key.
func (l *Lock) Locked(ctx context.Context) (bool, error) {
	n, err := l.client.Exists(ctx, l.key).Result()
	if err != nil {
		return false, wrap("exists", err)
	}
	return n > 0, nil
}
