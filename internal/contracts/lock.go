package contracts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Locker serializes diff runs for a single contract. Concurrent checks on the
// same contract must not both observe the pre-check status, or the pass
// reward would be applied twice.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// mutexLocker is the single-process fallback used when Redis is not
// configured.
type mutexLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMutexLocker() *mutexLocker {
	return &mutexLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *mutexLocker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

// redisLocker coordinates across processes via redislock.
type redisLocker struct {
	client *redislock.Client
}

func newRedisLocker(rdb *redis.Client) *redisLocker {
	return &redisLocker{client: redislock.New(rdb)}
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := l.client.Obtain(ctx, "otd:lock:"+key, 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 100),
	})
	if err != nil {
		return nil, fmt.Errorf("obtain lock for %s: %w", key, err)
	}
	return func() { _ = lock.Release(context.Background()) }, nil
}
