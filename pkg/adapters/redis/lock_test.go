package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/outline/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "project-1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, mr.Exists("test:lock:project-1"), "Lock key should be set in Redis")

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:project-1"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, client := newClient(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker1.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	ctxTimeout, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = locker2.Lock(ctxTimeout, "shared", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.WithinDuration(t, start.Add(500*time.Millisecond), time.Now(), 150*time.Millisecond, "Should block until timeout")

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)
	assert.True(t, mr.Exists("test:lock:shared"))
}

func TestRedisLocker_StaleUnlockKeepsNewHolder(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "k", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	unlock2, err := locker.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)

	assert.ErrorIs(t, unlock1(ctx), redis.ErrLockLost)
	assert.True(t, mr.Exists("test:lock:k"), "expired holder must not release the new lock")
}

func TestRedisLocker_WithRetry(t *testing.T) {
	_, client := newClient(t)
	holder := redis.NewLocker(client, "test:")
	waiter := redis.NewLocker(client, "test:", redis.WithRetry(10*time.Millisecond))
	ctx := context.Background()

	unlock, err := holder.Lock(ctx, "k", 5*time.Second)
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = unlock(ctx)
	}()

	ctxTimeout, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlock2, err := waiter.Lock(ctxTimeout, "k", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}
