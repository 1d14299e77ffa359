// Package lock serializes writers of one bill across API replicas.
// The database row lock remains the source of truth; this only keeps
// concurrent writers from queueing on the row lock inside open transactions.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker hands out named locks. The returned release func is never nil.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Nop grants every lock immediately
type Nop struct{}

func (Nop) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

// RedisLocker is a best-effort distributed lock. When redis is unreachable or the
// lock stays busy past the retry budget, callers proceed without it.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl, log: log}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), int(l.ttl/(100*time.Millisecond))),
	}
	obtained, err := l.client.Obtain(ctx, "lock:"+key, l.ttl, opts)
	if err != nil {
		if ctx.Err() != nil {
			return func() {}, ctx.Err()
		}
		if errors.Is(err, redislock.ErrNotObtained) {
			l.log.Warn("could not obtain lock; proceeding on row lock only", zap.String("key", key))
		} else {
			l.log.Warn("error obtaining lock; proceeding on row lock only", zap.String("key", key), zap.Error(err))
		}
		return func() {}, nil
	}

	return func() {
		// the caller's ctx may already be cancelled, release independently
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := obtained.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.log.Warn("failed to release lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
