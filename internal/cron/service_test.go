package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/curiomarket/curio-backend/pkg/logger"
	"github.com/curiomarket/curio-backend/pkg/metrics"
	"github.com/curiomarket/curio-backend/pkg/redis/redistest"
)

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string     { return t.name }
func (t *testJob) Schedule() string { return "@every 1h" }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, jobs ...Job) (*Service, *prometheus.Registry) {
	t.Helper()
	client, _ := redistest.New(t)
	reg := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Registry: NewRegistry(jobs...),
		Locks:    RedisLocks(client, time.Minute),
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service, reg
}

func TestRunNowRecordsOutcome(t *testing.T) {
	ok := &testJob{name: "success"}
	bad := &testJob{name: "fail", err: errors.New("boom")}
	service, reg := newTestService(t, ok, bad)
	ctx := context.Background()

	if err := service.RunNow(ctx, "success"); err != nil {
		t.Fatalf("run success: %v", err)
	}
	if err := service.RunNow(ctx, "fail"); err == nil {
		t.Fatalf("expected failure")
	}
	if ok.runs != 1 || bad.runs != 1 {
		t.Fatalf("expected each job to run once, got %d and %d", ok.runs, bad.runs)
	}
	if got := counterValue(t, reg, "curio_job_success_total", "success"); got != 1 {
		t.Fatalf("expected success counter 1, got %v", got)
	}
	if got := counterValue(t, reg, "curio_job_failure_total", "fail"); got != 1 {
		t.Fatalf("expected failure counter 1, got %v", got)
	}
	if n := seriesCount(t, reg, "curio_job_duration_seconds"); n != 2 {
		t.Fatalf("expected 2 duration series, got %d", n)
	}
	if err := service.RunNow(ctx, "missing"); err == nil {
		t.Fatalf("expected unknown job error")
	}
}

type heldLock struct{}

func (heldLock) Acquire(context.Context) (bool, error) { return false, nil }
func (heldLock) Release(context.Context) error         { return nil }

func TestRunNowSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "busy"}
	service, reg := newTestService(t, job)
	service.locks = func(string) (Lock, error) { return heldLock{}, nil }

	if err := service.RunNow(context.Background(), "busy"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job to be skipped")
	}
	if got := counterValue(t, reg, "curio_job_skipped_total", "busy"); got != 1 {
		t.Fatalf("expected skipped counter 1, got %v", got)
	}
}

func TestRunRejectsInvalidSchedule(t *testing.T) {
	service, _ := newTestService(t, &badScheduleJob{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := service.Run(ctx); err == nil {
		t.Fatalf("expected schedule error")
	}
}

type badScheduleJob struct{ stubJob }

func (badScheduleJob) Schedule() string { return "every now and then" }

func TestRedisLockIsExclusive(t *testing.T) {
	client, _ := redistest.New(t)
	ctx := context.Background()
	factory := RedisLocks(client, time.Minute)

	first, err := factory("job")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	second, _ := factory("job")

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("expected first acquire, got %v %v", ok, err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("expected second acquire to fail")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatalf("non-owner release must not free the lock")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, job string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasJobLabel(m, job) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasJobLabel(m *dto.Metric, job string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == "job" && lp.GetValue() == job {
			return true
		}
	}
	return false
}

func seriesCount(t *testing.T, reg *prometheus.Registry, name string) int {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return len(mf.GetMetric())
		}
	}
	return 0
}
