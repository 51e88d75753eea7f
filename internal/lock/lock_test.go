package lock

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocalLocker()
	now := time.Unix(1000, 0)
	l.clock = func() time.Time { return now }

	release, err := l.Acquire(ctx, "job:1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "job:1", time.Minute)
	assert.True(t, errors.Is(err, ErrLockHeld))

	// other keys are independent
	other, err := l.Acquire(ctx, "job:2", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := l.Acquire(ctx, "job:1", time.Minute)
	require.NoError(t, err)

	// after expiry a new owner may take the key, and the stale release leaves it alone
	now = now.Add(2 * time.Minute)
	fresh, err := l.Acquire(ctx, "job:1", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
	_, err = l.Acquire(ctx, "job:1", time.Minute)
	assert.True(t, errors.Is(err, ErrLockHeld))
	require.NoError(t, fresh(ctx))
}

func TestLocalLocker_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalLocker().Acquire(ctx, "k", time.Second)
	assert.Error(t, err)
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	l := NewRedisLocker(NewRedisClient(addr, os.Getenv("REDIS_PASSWORD"), 0), "test:lock:")
	t.Cleanup(func() { _ = l.Close() })
	require.NoError(t, l.Ping(ctx))

	key := uuid.NewString()
	release, err := l.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, key, 5*time.Second)
	assert.True(t, errors.Is(err, ErrLockHeld))

	require.NoError(t, release(ctx))
	release, err = l.Acquire(ctx, key, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
