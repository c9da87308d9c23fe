package throttle

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const redisKeyPrefix = "throttle:"

// incrementScript bumps the counter and starts the window expiry on the first
// attempt so an expired window restarts the count at 1.
var incrementScript = redis.NewScript(`
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
if count == 1 then
	redis.call('HSET', KEYS[1], 'first', ARGV[1])
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return count
`)

var _ Limiter = (*RedisThrottle)(nil)

// RedisThrottle shares attempt counts between server instances. Semantics
// match Throttle; expiry is delegated to Redis key TTLs so no sweep is needed.
type RedisThrottle struct {
	client      redis.UniversalClient
	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	nowTime     func() time.Time
}

func NewRedis(client redis.UniversalClient, options ...Option) (*RedisThrottle, error) {
	if client == nil {
		return nil, errors.New("[NewRedis] redis client is required")
	}
	// reuse the in-memory option set for limits
	t := New(options...)
	return &RedisThrottle{
		client:      client,
		maxAttempts: t.maxAttempts,
		window:      t.window,
		lockout:     t.lockout,
		nowTime:     t.nowTime,
	}, nil
}

func countKey(identifier string) string {
	return redisKeyPrefix + identifier
}

func lockKey(identifier string) string {
	return redisKeyPrefix + identifier + ":lock"
}

func (t *RedisThrottle) RecordAttempt(ctx context.Context, identifier string) (Result, error) {
	remaining, err := t.GetLockoutTimeRemaining(ctx, identifier)
	if err != nil {
		return Result{}, err
	}
	if remaining > 0 {
		return Result{Allowed: false, RemainingLockout: remaining}, nil
	}

	count, err := incrementScript.Run(ctx, t.client,
		[]string{countKey(identifier)},
		t.nowTime().UnixMilli(), t.window.Milliseconds(),
	).Int64()
	if err != nil {
		return Result{}, errors.Wrap(err, "[RedisThrottle.RecordAttempt] increment")
	}

	if count <= int64(t.maxAttempts) {
		return Result{Allowed: true}, nil
	}

	pipe := t.client.TxPipeline()
	pipe.Set(ctx, lockKey(identifier), t.nowTime().Add(t.lockout).UnixMilli(), t.lockout)
	pipe.Del(ctx, countKey(identifier))
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, errors.Wrap(err, "[RedisThrottle.RecordAttempt] lock")
	}
	lockoutsTotal.Inc()
	log.Warn().Str("identifier", identifier).Dur("lockout", t.lockout).Msg("attempt limit exceeded")
	return Result{Allowed: false, RemainingLockout: t.lockout}, nil
}

func (t *RedisThrottle) IsLocked(ctx context.Context, identifier string) (bool, error) {
	remaining, err := t.GetLockoutTimeRemaining(ctx, identifier)
	return remaining > 0, err
}

func (t *RedisThrottle) GetLockoutTimeRemaining(ctx context.Context, identifier string) (time.Duration, error) {
	ttl, err := t.client.PTTL(ctx, lockKey(identifier)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "[RedisThrottle.GetLockoutTimeRemaining]")
	}
	// missing keys report negative durations
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (t *RedisThrottle) Reset(ctx context.Context, identifier string) error {
	if err := t.client.Del(ctx, countKey(identifier), lockKey(identifier)).Err(); err != nil {
		return errors.Wrap(err, "[RedisThrottle.Reset]")
	}
	return nil
}

func (t *RedisThrottle) ResetAll(ctx context.Context) error {
	iter := t.client.Scan(ctx, 0, fmt.Sprintf("%s*", redisKeyPrefix), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrap(err, "[RedisThrottle.ResetAll] scan")
	}
	if len(keys) == 0 {
		return nil
	}
	return errors.Wrap(t.client.Del(ctx, keys...).Err(), "[RedisThrottle.ResetAll] delete")
}
