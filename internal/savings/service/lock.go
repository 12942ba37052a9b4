package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/samiecode/babylon/pkg/logger"
	"github.com/samiecode/babylon/pkg/xerr"
	"github.com/samiecode/babylon/pkg/xredis"
)

// Locker serializes work per key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// MemLocker is a process-local keyed mutex.
type MemLocker struct {
	mu    sync.Mutex
	locks map[string]*memLock
}

type memLock struct {
	sem  chan struct{}
	refs int
}

func NewMemLocker() *MemLocker {
	return &MemLocker{locks: make(map[string]*memLock)}
}

func (m *MemLocker) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &memLock{sem: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		m.unref(key, l)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			m.unref(key, l)
		})
	}, nil
}

func (m *MemLocker) unref(key string, l *memLock) {
	m.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}

// RedisLocker spans instances through a Redis SET NX lock.
type RedisLocker struct {
	rdb      *redis.Client
	prefix   string
	ttl      time.Duration
	retries  int
	interval time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 3 * time.Minute
	}
	return &RedisLocker{rdb: rdb, prefix: "savings:lock:", ttl: ttl, retries: 50, interval: 100 * time.Millisecond}
}

func (r *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l := xredis.NewDistLock(r.rdb, r.prefix+key, r.ttl)
	ok, err := l.Lock(ctx, r.retries, r.interval)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xerr.Conflict("", "wallet %s is busy, retry later", key)
	}
	return func() {
		uctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if released, err := l.Unlock(uctx); err != nil || !released {
			logger.Warn(ctx, "release wallet lock", zap.String("key", key), zap.Bool("released", released), zap.Error(err))
		}
	}, nil
}
