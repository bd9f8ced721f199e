package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/stockrecon/internal/config"
	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	orderLockKeyPrefix = "lock:order:"
	defaultLockTTL     = 30 * time.Second
	defaultLockWait    = 2 * time.Second
	lockRetryInterval  = 50 * time.Millisecond
)

// OrderLocker serializes writers of a single purchase order. Lock blocks for
// a bounded time and returns domain.ErrOrderBusy when another writer keeps
// the order. The returned func releases the lock.
type OrderLocker interface {
	Lock(ctx context.Context, orderID string) (func(), error)
}

// NewOrderLocker returns a redis-backed locker when the cache is enabled and
// an in-process one otherwise.
func NewOrderLocker(cfg config.CacheConfig, ttl time.Duration) (OrderLocker, error) {
	if !cfg.Enabled {
		return NewLocalOrderLocker(defaultLockWait), nil
	}

	client, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return newRedisOrderLocker(client, ttl), nil
}

type redisOrderLocker struct {
	client *redis.Client
	locker *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

func newRedisOrderLocker(client *redis.Client, ttl time.Duration) *redisOrderLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &redisOrderLocker{
		client: client,
		locker: redislock.New(client),
		ttl:    ttl,
		wait:   defaultLockWait,
	}
}

func (l *redisOrderLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	retries := int(l.wait / lockRetryInterval)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(lockRetryInterval), retries),
	}

	lock, err := l.locker.Obtain(ctx, orderLockKeyPrefix+orderID, l.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, domain.ErrOrderBusy
	}
	if err != nil {
		return nil, fmt.Errorf("obtain order lock: %w", err)
	}

	return func() {
		// release on a fresh context so a canceled request still frees the key
		releaseCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warn().Err(err).Str("order_id", orderID).Msg("order lock: release failed")
		}
	}, nil
}

// LocalOrderLocker is the single-process OrderLocker.
type LocalOrderLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
	wait  time.Duration
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalOrderLocker(wait time.Duration) *LocalOrderLocker {
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &LocalOrderLocker{
		slots: make(map[string]*lockSlot),
		wait:  wait,
	}
}

func (l *LocalOrderLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	slot := l.acquireSlot(orderID)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
	case <-timer.C:
		l.releaseSlot(orderID)
		return nil, domain.ErrOrderBusy
	case <-ctx.Done():
		l.releaseSlot(orderID)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.releaseSlot(orderID)
		})
	}, nil
}

func (l *LocalOrderLocker) acquireSlot(orderID string) *lockSlot {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[orderID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[orderID] = slot
	}
	slot.refs++
	return slot
}

func (l *LocalOrderLocker) releaseSlot(orderID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot, ok := l.slots[orderID]
	if !ok {
		return
	}
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, orderID)
	}
}
