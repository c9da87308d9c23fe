package throttle_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/campus-market/throttle"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setupThrottle(t *testing.T) (*throttle.Throttle, *clock) {
	t.Helper()
	c := newClock()
	return throttle.New(throttle.WithNowFunc(c.Now)), c
}

func record(t *testing.T, th throttle.Limiter, id string) throttle.Result {
	t.Helper()
	result, err := th.RecordAttempt(context.Background(), id)
	require.NoError(t, err)
	return result
}

func TestThrottle_RecordAttempt(t *testing.T) {
	const id = "student@campus.edu"

	t.Run("five attempts allowed then locked for the full lockout", func(t *testing.T) {
		th, _ := setupThrottle(t)
		for i := 0; i < 5; i++ {
			require.True(t, record(t, th, id).Allowed, "attempt %d", i+1)
		}
		result := record(t, th, id)
		require.False(t, result.Allowed)
		require.Equal(t, 1_800_000*time.Millisecond, result.RemainingLockout)
	})

	t.Run("locked attempts do not increment the count", func(t *testing.T) {
		th, c := setupThrottle(t)
		for i := 0; i < 6; i++ {
			record(t, th, id)
		}
		before, ok := th.Get(id)
		require.True(t, ok)

		c.Advance(10 * time.Minute)
		result := record(t, th, id)
		require.False(t, result.Allowed)
		require.Equal(t, 20*time.Minute, result.RemainingLockout)

		after, ok := th.Get(id)
		require.True(t, ok)
		require.Equal(t, before.Count, after.Count)
	})

	t.Run("expired lockout deletes the record and restarts counting", func(t *testing.T) {
		th, c := setupThrottle(t)
		for i := 0; i < 6; i++ {
			record(t, th, id)
		}
		c.Advance(30 * time.Minute)
		require.True(t, record(t, th, id).Allowed)

		rec, ok := th.Get(id)
		require.True(t, ok)
		require.Equal(t, 1, rec.Count)
		require.Nil(t, rec.LockedUntil)
	})

	t.Run("window expiry resets the count", func(t *testing.T) {
		th, c := setupThrottle(t)
		for i := 0; i < 5; i++ {
			record(t, th, id)
		}
		c.Advance(15*time.Minute + time.Millisecond)
		require.True(t, record(t, th, id).Allowed)

		rec, _ := th.Get(id)
		require.Equal(t, 1, rec.Count)
	})

	t.Run("identifiers are independent", func(t *testing.T) {
		th, _ := setupThrottle(t)
		for i := 0; i < 6; i++ {
			record(t, th, id)
		}
		require.True(t, record(t, th, "other@campus.edu").Allowed)
	})
}

func TestThrottle_Auxiliary(t *testing.T) {
	const id = "student@campus.edu"
	ctx := context.Background()

	t.Run("is locked and remaining time", func(t *testing.T) {
		th, c := setupThrottle(t)
		locked, err := th.IsLocked(ctx, id)
		require.NoError(t, err)
		require.False(t, locked)

		for i := 0; i < 6; i++ {
			record(t, th, id)
		}
		locked, err = th.IsLocked(ctx, id)
		require.NoError(t, err)
		require.True(t, locked)

		c.Advance(5 * time.Minute)
		remaining, err := th.GetLockoutTimeRemaining(ctx, id)
		require.NoError(t, err)
		require.Equal(t, 25*time.Minute, remaining)

		c.Advance(25 * time.Minute)
		remaining, err = th.GetLockoutTimeRemaining(ctx, id)
		require.NoError(t, err)
		require.Zero(t, remaining)
	})

	t.Run("reset clears a lockout", func(t *testing.T) {
		th, _ := setupThrottle(t)
		for i := 0; i < 6; i++ {
			record(t, th, id)
		}
		require.NoError(t, th.Reset(ctx, id))
		require.True(t, record(t, th, id).Allowed)
	})

	t.Run("reset all", func(t *testing.T) {
		th, _ := setupThrottle(t)
		record(t, th, "a@b.co")
		record(t, th, "c@d.co")
		require.Equal(t, 2, th.Len())
		require.NoError(t, th.ResetAll(ctx))
		require.Zero(t, th.Len())
	})
}

func TestThrottle_Sweep(t *testing.T) {
	c := newClock()
	th := throttle.New(throttle.WithNowFunc(c.Now), throttle.WithLockout(time.Hour))
	record(t, th, "old@campus.edu")
	for i := 0; i < 6; i++ {
		record(t, th, "locked@campus.edu")
	}

	c.Advance(20 * time.Minute)
	record(t, th, "fresh@campus.edu")

	c.Advance(11 * time.Minute)
	removed := th.Sweep()
	require.Equal(t, 1, removed)

	_, ok := th.Get("old@campus.edu")
	require.False(t, ok)
	_, ok = th.Get("fresh@campus.edu")
	require.True(t, ok)
	_, ok = th.Get("locked@campus.edu")
	require.True(t, ok, "records inside an active lockout survive the sweep")
}

func TestThrottle_CustomLimits(t *testing.T) {
	c := newClock()
	th := throttle.New(
		throttle.WithNowFunc(c.Now),
		throttle.WithMaxAttempts(2),
		throttle.WithLockout(time.Minute),
	)
	require.True(t, record(t, th, "x").Allowed)
	require.True(t, record(t, th, "x").Allowed)
	result := record(t, th, "x")
	require.False(t, result.Allowed)
	require.Equal(t, time.Minute, result.RemainingLockout)
}

func TestThrottle_SweeperStops(t *testing.T) {
	th := throttle.New(throttle.WithSweepInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	th.StartSweeper(ctx)
	th.Close()
	th.Close()
}
