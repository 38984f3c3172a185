//go:build integration

package job

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/housebill/internal/billing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// newRedisClient starts a throwaway redis container for one test.
func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err, "start redis container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	t.Cleanup(func() {
		_ = client.Close()
	})
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisStoreRoundTrip(t *testing.T) {
	client := newRedisClient(t)
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	want := domain.JobStatus{
		State:   domain.JobStateSuccess,
		Current: 3,
		Total:   3,
		Result:  map[string]string{"status": "completed", "month": "2024-03-01"},
	}
	require.NoError(t, store.Save(ctx, "job-1", want))

	got, ok, err := store.Get(ctx, "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	ttl, err := client.TTL(ctx, statusKey("job-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestRedisStoreCorruptPayload(t *testing.T) {
	client := newRedisClient(t)
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	require.NoError(t, client.Set(ctx, statusKey("job-2"), "{not json", time.Hour).Err())

	_, _, err := store.Get(ctx, "job-2")
	assert.Error(t, err)
}

func TestRedisLockerExclusiveAndTokenScoped(t *testing.T) {
	client := newRedisClient(t)
	locker := NewRedisLocker(client)
	ctx := context.Background()
	key := lockKey("2024-03-01")

	token, ok, err := locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := client.PTTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	// A stale token must not release someone else's lock.
	require.NoError(t, locker.Release(ctx, key, "stale"))
	_, ok, err = locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, locker.Release(ctx, key, token))
	_, ok, err = locker.TryLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerExpires(t *testing.T) {
	client := newRedisClient(t)
	locker := NewRedisLocker(client)
	ctx := context.Background()
	key := lockKey("2024-04-01")

	_, ok, err := locker.TryLock(ctx, key, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok, err := locker.TryLock(ctx, key, time.Minute)
		return err == nil && ok
	}, 5*time.Second, 50*time.Millisecond)
}
