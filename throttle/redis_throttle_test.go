package throttle_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/campus-market/throttle"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const redisTestID = "student@campus.edu"

func setupRedisThrottle(t *testing.T, options ...throttle.Option) (*throttle.RedisThrottle, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	th, err := throttle.NewRedis(client, options...)
	require.NoError(t, err)
	return th, m
}

func countKey(id string) string {
	return "throttle:" + id
}

func lockKey(id string) string {
	return "throttle:" + id + ":lock"
}

func TestNewRedis_RequiresClient(t *testing.T) {
	_, err := throttle.NewRedis(nil)
	require.Error(t, err)
}

func TestRedisThrottle_RecordAttempt(t *testing.T) {
	ctx := context.Background()

	t.Run("five attempts allowed then locked for the full lockout", func(t *testing.T) {
		th, m := setupRedisThrottle(t)
		for i := 0; i < 5; i++ {
			require.True(t, record(t, th, redisTestID).Allowed, "attempt %d", i+1)
		}
		require.Equal(t, "5", m.HGet(countKey(redisTestID), "count"))

		result := record(t, th, redisTestID)
		require.False(t, result.Allowed)
		require.Equal(t, 30*time.Minute, result.RemainingLockout)
		require.Equal(t, 30*time.Minute, m.TTL(lockKey(redisTestID)))

		locked, err := th.IsLocked(ctx, redisTestID)
		require.NoError(t, err)
		require.True(t, locked)
	})

	t.Run("locked attempts do not increment the count", func(t *testing.T) {
		th, m := setupRedisThrottle(t)
		for i := 0; i < 6; i++ {
			record(t, th, redisTestID)
		}
		require.False(t, m.Exists(countKey(redisTestID)))

		m.FastForward(10 * time.Minute)
		result := record(t, th, redisTestID)
		require.False(t, result.Allowed)
		require.Equal(t, 20*time.Minute, result.RemainingLockout)
		require.False(t, m.Exists(countKey(redisTestID)))

		remaining, err := th.GetLockoutTimeRemaining(ctx, redisTestID)
		require.NoError(t, err)
		require.Equal(t, 20*time.Minute, remaining)
	})

	t.Run("expired lockout restarts counting", func(t *testing.T) {
		th, m := setupRedisThrottle(t)
		for i := 0; i < 6; i++ {
			record(t, th, redisTestID)
		}

		m.FastForward(30*time.Minute + time.Second)
		require.False(t, m.Exists(lockKey(redisTestID)))
		require.True(t, record(t, th, redisTestID).Allowed)
		require.Equal(t, "1", m.HGet(countKey(redisTestID), "count"))
	})

	t.Run("window expiry restarts counting", func(t *testing.T) {
		th, m := setupRedisThrottle(t)
		for i := 0; i < 5; i++ {
			record(t, th, redisTestID)
		}
		require.Equal(t, 15*time.Minute, m.TTL(countKey(redisTestID)))

		m.FastForward(15*time.Minute + time.Second)
		require.True(t, record(t, th, redisTestID).Allowed)
		require.Equal(t, "1", m.HGet(countKey(redisTestID), "count"))
	})

	t.Run("window does not slide with later attempts", func(t *testing.T) {
		th, m := setupRedisThrottle(t)
		record(t, th, redisTestID)
		m.FastForward(10 * time.Minute)
		record(t, th, redisTestID)
		require.Equal(t, 5*time.Minute, m.TTL(countKey(redisTestID)))
	})

	t.Run("identifiers are counted separately", func(t *testing.T) {
		th, _ := setupRedisThrottle(t)
		for i := 0; i < 6; i++ {
			record(t, th, redisTestID)
		}
		require.True(t, record(t, th, "other@campus.edu").Allowed)
	})

	t.Run("custom limits", func(t *testing.T) {
		th, m := setupRedisThrottle(t, throttle.WithMaxAttempts(2), throttle.WithLockout(time.Minute))
		require.True(t, record(t, th, redisTestID).Allowed)
		require.True(t, record(t, th, redisTestID).Allowed)
		result := record(t, th, redisTestID)
		require.False(t, result.Allowed)
		require.Equal(t, time.Minute, result.RemainingLockout)
		require.Equal(t, time.Minute, m.TTL(lockKey(redisTestID)))
	})

	t.Run("store failure", func(t *testing.T) {
		th, m := setupRedisThrottle(t)
		m.SetError("ERR store unavailable")
		_, err := th.RecordAttempt(ctx, redisTestID)
		require.Error(t, err)
	})
}

func TestRedisThrottle_GetLockoutTimeRemaining_Unknown(t *testing.T) {
	th, _ := setupRedisThrottle(t)
	remaining, err := th.GetLockoutTimeRemaining(context.Background(), "nobody@campus.edu")
	require.NoError(t, err)
	require.Zero(t, remaining)

	locked, err := th.IsLocked(context.Background(), "nobody@campus.edu")
	require.NoError(t, err)
	require.False(t, locked)
}

func TestRedisThrottle_Reset(t *testing.T) {
	ctx := context.Background()
	th, m := setupRedisThrottle(t)
	for i := 0; i < 6; i++ {
		record(t, th, redisTestID)
	}

	require.NoError(t, th.Reset(ctx, redisTestID))
	require.False(t, m.Exists(lockKey(redisTestID)))
	require.False(t, m.Exists(countKey(redisTestID)))
	require.True(t, record(t, th, redisTestID).Allowed)
}

func TestRedisThrottle_ResetAll(t *testing.T) {
	ctx := context.Background()
	th, m := setupRedisThrottle(t)
	require.NoError(t, m.Set("listings:cache", "keep"))

	for i := 0; i < 6; i++ {
		record(t, th, redisTestID)
	}
	record(t, th, "other@campus.edu")

	require.NoError(t, th.ResetAll(ctx))
	require.False(t, m.Exists(lockKey(redisTestID)))
	require.False(t, m.Exists(countKey("other@campus.edu")))
	require.True(t, m.Exists("listings:cache"))

	require.NoError(t, th.ResetAll(ctx))
	require.True(t, record(t, th, redisTestID).Allowed)
}
