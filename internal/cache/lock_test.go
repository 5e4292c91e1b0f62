package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/cache"
)

func TestLockAcquireRelease(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	lock := c.Lock("bootstrap", time.Second)
	require.NoError(t, lock.Acquire(ctx))

	held, err := lock.Locked(ctx)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, lock.Release(ctx))

	held, err = lock.Locked(ctx)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestLockBlocksSecondHolderUntilLeaseExpires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	first := c.Lock("contended", 150*time.Millisecond)
	require.NoError(t, first.Acquire(ctx))

	// miniredis only expires keys on FastForward; expire the first lease
	// while the second holder is still inside its 2x acquire window.
	go func() {
		time.Sleep(120 * time.Millisecond)
		mr.FastForward(200 * time.Millisecond)
	}()

	second := c.Lock("contended", 150*time.Millisecond)
	start := time.Now()
	require.NoError(t, second.Acquire(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestLockAcquireTimesOut(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	first := c.Lock("stuck", 50*time.Millisecond)
	require.NoError(t, first.Acquire(ctx))

	// The lease never expires here, so the second holder exhausts its
	// window and gives up.
	second := c.Lock("stuck", 50*time.Millisecond)
	err := second.Acquire(ctx)
	assert.ErrorIs(t, err, cache.ErrLockTimeout)
}

func TestReleaseOnlyByHolder(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	holder := c.Lock("owned", time.Minute)
	require.NoError(t, holder.Acquire(ctx))

	stranger := c.Lock("owned", time.Minute)
	assert.ErrorIs(t, stranger.Release(ctx), cache.ErrLockNotHeld)

	held, err := holder.Locked(ctx)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, holder.Release(ctx))
}

func TestAcquireHonorsContextCancel(t *testing.T) {
	c, _ := newTestCache(t)

	first := c.Lock("cancelled", time.Minute)
	require.NoError(t, first.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	second := c.Lock("cancelled", time.Minute)
	err := second.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
