package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/curiomarket/curio-backend/internal/subscriptions"
	"github.com/curiomarket/curio-backend/pkg/db/models"
	"github.com/curiomarket/curio-backend/pkg/logger"
)

type pagedUsers struct {
	ids    []uuid.UUID
	sinces []time.Time
}

func (p *pagedUsers) ListForReconcile(_ context.Context, since time.Time, afterID uuid.UUID, limit int) ([]models.User, error) {
	p.sinces = append(p.sinces, since)
	var out []models.User
	started := afterID == uuid.Nil
	for _, id := range p.ids {
		if !started {
			started = id == afterID
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, models.User{ID: id})
	}
	return out, nil
}

type recordingReconciler struct {
	seen []uuid.UUID
	fail map[uuid.UUID]bool
}

func (r *recordingReconciler) Reconcile(_ context.Context, userID uuid.UUID) (*subscriptions.StatusResult, error) {
	r.seen = append(r.seen, userID)
	if r.fail[userID] {
		return nil, errors.New("stripe unavailable")
	}
	return &subscriptions.StatusResult{}, nil
}

func discard() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestSubscriptionReconcileWalksAllBatchesAndCollectsErrors(t *testing.T) {
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		ids[i] = uuid.New()
	}
	users := &pagedUsers{ids: ids}
	rec := &recordingReconciler{fail: map[uuid.UUID]bool{ids[1]: true, ids[3]: true}}
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	job, err := NewSubscriptionReconcileJob(SubscriptionReconcileJobParams{
		Logger:     discard(),
		Users:      users,
		Reconciler: rec,
		BatchSize:  2,
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)
	assert.Equal(t, "@every 30m", job.Schedule())

	err = job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Equal(t, ids, rec.seen)
	require.NotEmpty(t, users.sinces)
	assert.Equal(t, now.Add(-7*24*time.Hour), users.sinces[0])
}

type fakeCleaner struct{ retention time.Duration }

func (f *fakeCleaner) Cleanup(_ context.Context, retention time.Duration) (int64, int64, error) {
	f.retention = retention
	return 2, 5, nil
}

type fakePurger struct {
	olderThan time.Duration
	err       error
}

func (f *fakePurger) PurgeAnonymous(_ context.Context, olderThan time.Duration) (int64, error) {
	f.olderThan = olderThan
	return 3, f.err
}

func TestCleanupJobs(t *testing.T) {
	cleaner := &fakeCleaner{}
	vjob, err := NewVerificationCleanupJob(discard(), cleaner)
	require.NoError(t, err)
	require.NoError(t, vjob.Run(context.Background()))
	assert.Equal(t, 30*24*time.Hour, cleaner.retention)
	assert.Equal(t, "@hourly", vjob.Schedule())

	purger := &fakePurger{}
	cjob, err := NewCartCleanupJob(discard(), purger)
	require.NoError(t, err)
	require.NoError(t, cjob.Run(context.Background()))
	assert.Equal(t, 30*24*time.Hour, purger.olderThan)
	assert.Equal(t, "@daily", cjob.Schedule())

	purger.err = errors.New("db down")
	assert.Error(t, cjob.Run(context.Background()))
}
