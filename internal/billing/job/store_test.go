package job

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/housebill/internal/billing/domain"
	"github.com/smallbiznis/housebill/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreExpiresEntries(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryStore(time.Hour, c)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "a", domain.JobStatus{State: domain.JobStateProgress, Current: 1, Total: 3}))

	status, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, status.Current)

	c.Advance(time.Hour)
	_, ok, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStoreCopiesResult(t *testing.T) {
	store := NewMemoryStore(0, nil)
	ctx := context.Background()
	result := map[string]string{"status": "completed"}

	require.NoError(t, store.Save(ctx, "a", domain.JobStatus{State: domain.JobStateSuccess, Result: result}))
	result["status"] = "mutated"

	status, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "completed", status.Result["status"])
}

func TestMemoryLocker(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	locker := NewMemoryLocker(c)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// A stale token must not release someone else's lock.
	require.NoError(t, locker.Release(ctx, "k", "stale"))
	_, ok, _ = locker.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, "k", token))
	_, ok, _ = locker.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)
}

func TestMemoryLockerExpires(t *testing.T) {
	c := clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	locker := NewMemoryLocker(c)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	c.Advance(time.Minute)
	_, ok, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockValidation(t *testing.T) {
	locker := NewMemoryLocker(nil)

	_, _, err := locker.TryLock(context.Background(), "", time.Minute)
	assert.Error(t, err)
	_, _, err = locker.TryLock(context.Background(), "k", 0)
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "billing:run:lock:2024-03-01", lockKey("2024-03-01"))
	assert.Equal(t, "billing:job:abc", statusKey("abc"))
}

func TestNilRedisLockerIsSafe(t *testing.T) {
	var locker *RedisLocker
	assert.Nil(t, NewRedisLocker(nil))
	assert.NoError(t, locker.Release(context.Background(), "k", "t"))
	_, ok, err := locker.TryLock(context.Background(), "k", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}
