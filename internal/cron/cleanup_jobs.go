package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/curiomarket/curio-backend/pkg/logger"
)

const (
	verificationRetention = 30 * 24 * time.Hour
	anonymousCartTTL      = 30 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type verificationCleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (expired, purged int64, err error)
}

type cartPurger interface {
	PurgeAnonymous(ctx context.Context, olderThan time.Duration) (int64, error)
}

// NewVerificationCleanupJob expires overdue verification requests and purges
// rows past retention.
func NewVerificationCleanupJob(logg *logger.Logger, cleaner verificationCleaner) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cleaner == nil {
		return nil, fmt.Errorf("verification service required")
	}
	return &verificationCleanupJob{logg: logg, cleaner: cleaner, retention: verificationRetention}, nil
}

type verificationCleanupJob struct {
	logg      *logger.Logger
	cleaner   verificationCleaner
	retention time.Duration
}

func (j *verificationCleanupJob) Name() string     { return "verification-cleanup" }
func (j *verificationCleanupJob) Schedule() string { return "@hourly" }

func (j *verificationCleanupJob) Run(ctx context.Context) error {
	expired, purged, err := j.cleaner.Cleanup(ctx, j.retention)
	if err != nil {
		return fmt.Errorf("verification cleanup: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"expired": expired,
		"purged":  purged,
	}), "verification cleanup complete")
	return nil
}

// NewCartCleanupJob deletes anonymous carts untouched for 30 days.
func NewCartCleanupJob(logg *logger.Logger, carts cartPurger) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	return &cartCleanupJob{logg: logg, carts: carts, ttl: anonymousCartTTL}, nil
}

type cartCleanupJob struct {
	logg  *logger.Logger
	carts cartPurger
	ttl   time.Duration
}

func (j *cartCleanupJob) Name() string     { return "cart-cleanup" }
func (j *cartCleanupJob) Schedule() string { return "@daily" }

func (j *cartCleanupJob) Run(ctx context.Context) error {
	removed, err := j.carts.PurgeAnonymous(ctx, j.ttl)
	if err != nil {
		return fmt.Errorf("cart cleanup: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "carts_deleted", removed), "cart cleanup complete")
	return nil
}
