package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	lockSuffix   = ":lock"
	resultSuffix = ":result"
)

type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{rdb: rdb, ttl: ttl}
}

func (g *RedisGuard) RunOnce(ctx context.Context, key string, fn func(ctx context.Context) ([]byte, error)) ([]byte, bool, error) {
	resultKey := "idem:" + key + resultSuffix
	lockKey := "idem:" + key + lockSuffix

	cached, err := g.rdb.Get(ctx, resultKey).Bytes()
	if err == nil {
		return cached, true, nil
	}
	if err != redis.Nil {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}

	ok, err := g.rdb.SetNX(ctx, lockKey, "1", g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lock: %w", err)
	}
	if !ok {
		// Someone else is (or was) executing. Re-check for a result in case
		// they finished between our two calls.
		cached, err := g.rdb.Get(ctx, resultKey).Bytes()
		if err == nil {
			return cached, true, nil
		}
		return nil, false, ErrInProgress
	}

	result, err := fn(ctx)
	if err != nil {
		// Release the key so a later retry can execute.
		_ = g.rdb.Del(ctx, lockKey).Err()
		return nil, false, err
	}
	if err := g.rdb.Set(ctx, resultKey, result, g.ttl).Err(); err != nil {
		return nil, false, fmt.Errorf("idempotency record: %w", err)
	}
	return result, false, nil
}
