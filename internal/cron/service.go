package cron

import (
	"context"
	"fmt"
	"time"

	robfig "github.com/robfig/cron/v3"

	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/metrics"
)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
	Location *time.Location
}

// Service schedules registered jobs, each on its own spec and lock.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.CronJobMetrics
	cron     *robfig.Cron
}

// NewService builds the scheduler and validates every job's spec.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
	}
	adapter := cronLogger{logg: params.Logger}
	s.cron = robfig.New(
		robfig.WithLocation(loc),
		robfig.WithLogger(adapter),
		robfig.WithChain(robfig.Recover(adapter), robfig.SkipIfStillRunning(adapter)),
	)
	return s, nil
}

// Run schedules every job and blocks until ctx is canceled, then waits for
// running jobs to finish.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, job := range s.registry.Jobs() {
		job := job
		if _, err := s.cron.AddFunc(job.Schedule(), func() { s.runJob(ctx, job) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", job.Name(), job.Schedule(), err)
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "schedule": job.Schedule()}), "job scheduled")
	}
	s.cron.Start()
	<-ctx.Done()
	s.logg.Info(ctx, "cron service context canceled")
	<-s.cron.Stop().Done()
	return ctx.Err()
}

// RunNow executes the named job once, honoring its lock.
func (s *Service) RunNow(ctx context.Context, name string) error {
	job, ok := s.registry.Find(name)
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.runJob(ctx, job)
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")

	lock, err := s.locks(job.Name())
	if err != nil {
		s.logg.Error(jobCtx, "failed to build job lock", err)
		s.metrics.IncFailure(job.Name())
		return err
	}
	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		s.logg.Error(jobCtx, "lock acquire failed", err)
		s.metrics.IncFailure(job.Name())
		return err
	}
	if !locked {
		s.logg.Info(jobCtx, "another instance holds the job lock; skipping")
		s.metrics.IncSkipped(job.Name())
		return nil
	}
	defer func() {
		if relErr := lock.Release(ctx); relErr != nil {
			s.logg.Error(jobCtx, "failed to release job lock", relErr)
		}
	}()

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err = job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
	return nil
}

// cronLogger routes robfig/cron's own logging through the service logger.
type cronLogger struct {
	logg *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logg.Debug(c.logg.WithFields(context.Background(), pairs(keysAndValues)), "cron: "+msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logg.Error(c.logg.WithFields(context.Background(), pairs(keysAndValues)), "cron: "+msg, err)
}

func pairs(kv []interface{}) map[string]any {
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return out
}
