package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"field-dispatch/internal/core"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisLocker is a core.Locker shared by every process pointing at the same Redis.
type RedisLocker struct {
	locker *redislock.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
	log    logrus.FieldLogger
}

// NewRedisLocker holds each lock with a ttl that is refreshed while held, and waits
// up to wait to obtain it.
func NewRedisLocker(rdb *redis.Client, ttl, wait time.Duration, log logrus.FieldLogger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		locker: redislock.New(rdb),
		prefix: "field-dispatch:lock:",
		ttl:    ttl,
		wait:   wait,
		retry:  50 * time.Millisecond,
		log:    log.WithField("module", "lock"),
	}
}

// Connect opens a Redis client and checks it answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       0,
		PoolSize: 100,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("unable to ping redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	lk, err := l.locker.Obtain(ctx, l.prefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", core.ErrLockUnavailable, key)
	} else if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", core.ErrLockUnavailable, key, err)
	}

	held, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go l.keepAlive(held, lk, key, done)

	return func() {
		stop()
		<-done
		// The caller's context may already be done; release on a fresh one.
		relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		switch err := lk.Release(relCtx); {
		case errors.Is(err, redislock.ErrLockNotHeld):
			l.log.WithField("key", key).Error("lock expired before release; another holder may have overlapped")
		case err != nil:
			l.log.WithField("key", key).WithError(err).Warn("failed to release lock; it expires after its ttl")
		}
	}, nil
}

// keepAlive extends the lock every ttl/2 until ctx is cancelled or the lock is lost.
func (l *RedisLocker) keepAlive(ctx context.Context, lk *redislock.Lock, key string, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := lk.Refresh(ctx, l.ttl, nil)
			if err == nil {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			entry := l.log.WithField("key", key).WithError(err)
			if errors.Is(err, redislock.ErrNotObtained) {
				entry.Error("lock lost while held")
				return
			}
			entry.Warn("failed to refresh lock")
		}
	}
}

var _ core.Locker = (*RedisLocker)(nil)
