package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/curiomarket/curio-backend/internal/subscriptions"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

const (
	defaultReconcileBatch    = 250
	defaultReconcileLookback = 7 * 24 * time.Hour
)

type reconcileCandidates interface {
	ListForReconcile(ctx context.Context, since time.Time, afterID uuid.UUID, limit int) ([]models.User, error)
}

type subscriptionReconciler interface {
	Reconcile(ctx context.Context, userID uuid.UUID) (*subscriptions.StatusResult, error)
}

// SubscriptionReconcileJobParams configures the Stripe drift-correction job.
type SubscriptionReconcileJobParams struct {
	Logger     *logger.Logger
	Users      reconcileCandidates
	Reconciler subscriptionReconciler
	BatchSize  int
	Lookback   time.Duration
	Now        func() time.Time
}

// NewSubscriptionReconcileJob builds the reconciliation job.
func NewSubscriptionReconcileJob(params SubscriptionReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("subscription reconciler required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	lookback := params.Lookback
	if lookback <= 0 {
		lookback = defaultReconcileLookback
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &subscriptionReconcileJob{
		logg:       params.Logger,
		users:      params.Users,
		reconciler: params.Reconciler,
		now:        now,
		batch:      batch,
		lookback:   lookback,
	}, nil
}

type subscriptionReconcileJob struct {
	logg       *logger.Logger
	users      reconcileCandidates
	reconciler subscriptionReconciler
	now        func() time.Time
	batch      int
	lookback   time.Duration
}

func (j *subscriptionReconcileJob) Name() string     { return "subscription-reconcile" }
func (j *subscriptionReconcileJob) Schedule() string { return "@every 30m" }

// Run walks every candidate user in id order. One user's failure does not
// stop the sweep; all failures are returned together.
func (j *subscriptionReconcileJob) Run(ctx context.Context) error {
	since := j.now().UTC().Add(-j.lookback)
	var (
		errs    error
		after   uuid.UUID
		scanned int
		synced  int
	)
	for {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		users, err := j.users.ListForReconcile(ctx, since, after, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list subscriptions for reconciliation: %w", err))
		}
		for i := range users {
			scanned++
			if _, err := j.reconciler.Reconcile(ctx, users[i].ID); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("reconcile user %s: %w", users[i].ID, err))
				continue
			}
			synced++
		}
		if len(users) < j.batch {
			break
		}
		after = users[len(users)-1].ID
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": scanned,
		"synced":     synced,
		"failed":     len(multierr.Errors(errs)),
	}), "subscription reconcile loop complete")
	return errs
}
