package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/curiomarket/curio-backend/pkg/errors"
	"github.com/curiomarket/curio-backend/pkg/redis"
)

const (
	lockScope       = "subscription"
	lockRetryBase   = 50 * time.Millisecond
	lockRetryCap    = time.Second
	defaultLockTTL  = 30 * time.Second
	releaseDeadline = 2 * time.Second
)

var errLockHeld = errors.New("subscription lock held")

// userLock serializes subscription writes per user across processes.
type userLock struct {
	locker redis.Locker
	ttl    time.Duration
}

func newUserLock(locker redis.Locker, ttl time.Duration) *userLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &userLock{locker: locker, ttl: ttl}
}

// acquire blocks until the lock is taken or ctx ends. Without a deadline on
// ctx the wait is bounded by the lock TTL. The returned func releases the
// lock only while this caller still owns it.
func (l *userLock) acquire(ctx context.Context, userID uuid.UUID) (func(), error) {
	key := l.locker.LockKey(lockScope, userID.String())
	token := uuid.NewString()

	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.ttl)
		defer cancel()
	}

	backoff := retry.WithCappedDuration(lockRetryCap, retry.WithJitterPercent(20, retry.NewExponential(lockRetryBase)))
	err := retry.Do(waitCtx, backoff, func(ctx context.Context) error {
		ok, err := l.locker.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return err
		}
		if !ok {
			return retry.RetryableError(errLockHeld)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errLockHeld) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "subscription update already in progress")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire subscription lock")
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseDeadline)
		defer cancel()
		_, _ = l.locker.ReleaseIfOwner(releaseCtx, key, token)
	}, nil
}
