package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/curiomarket/curio-backend/pkg/redis"
)

const (
	defaultLockTTL = 55 * time.Minute
	lockScope      = "cron"
)

// Lock coordinates exclusive job runs across worker instances.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LockFactory returns the lock guarding the named job.
type LockFactory func(job string) (Lock, error)

// RedisLock implements Lock with SET NX and an owner-checked delete.
type RedisLock struct {
	client redis.Locker
	key    string
	ttl    time.Duration
	owner  string
}

// NewRedisLock constructs a Redis-backed lock for key.
func NewRedisLock(client redis.Locker, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

// RedisLocks builds one RedisLock per job under curio:lock:cron:<job>.
func RedisLocks(client redis.Locker, ttl time.Duration) LockFactory {
	return func(job string) (Lock, error) {
		if client == nil {
			return nil, errors.New("redis client required for lock")
		}
		return NewRedisLock(client, client.LockKey(lockScope, job), ttl)
	}
}

// Acquire tries to own the lock for the configured TTL.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release frees the lock only if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	if _, err := l.client.ReleaseIfOwner(ctx, l.key, l.owner); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	l.owner = ""
	return nil
}
