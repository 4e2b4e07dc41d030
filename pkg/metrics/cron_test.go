package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCronJobMetrics(reg)
	job := "subscription-reconcile"
	metrics.ObserveDuration(job, 250*time.Millisecond)
	metrics.IncSuccess(job)
	metrics.IncFailure(job)
	metrics.IncSkipped(job)
	metrics.IncSkipped(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for name, want := range map[string]float64{
		"curio_job_success_total": 1,
		"curio_job_failure_total": 1,
		"curio_job_skipped_total": 2,
	} {
		got, err := fetchCounterValue(mfs, name, map[string]string{"job": job})
		if err != nil {
			t.Fatalf("fetch %s: %v", name, err)
		}
		if got != want {
			t.Fatalf("expected %s=%v, got %v", name, want, got)
		}
	}

	if got, err := fetchHistogramSum(mfs, "curio_job_duration_seconds", map[string]string{"job": job}); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	cron := NewCronJobMetrics(nil)
	cron.IncSuccess("x")
	cron.ObserveDuration("x", time.Second)

	billing := NewBillingMetrics(nil)
	billing.ObserveWebhook("invoice.payment_succeeded", OutcomeProcessed)
	billing.ObserveTransition("none", "active")

	var nilBilling *BillingMetrics
	nilBilling.ObserveRejectedTransition("canceled", "active")
}

func TestBillingMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg)
	m.ObserveWebhook("customer.subscription.updated", OutcomeProcessed)
	m.ObserveWebhook("customer.subscription.updated", OutcomeDuplicate)
	m.ObserveWebhook("", OutcomeIgnored)
	m.ObserveTransition("incomplete", "active")
	m.ObserveRejectedTransition("canceled", "active")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	cases := []struct {
		name   string
		labels map[string]string
	}{
		{"curio_stripe_webhook_events_total", map[string]string{"type": "customer.subscription.updated", "outcome": "processed"}},
		{"curio_stripe_webhook_events_total", map[string]string{"type": "customer.subscription.updated", "outcome": "duplicate"}},
		{"curio_stripe_webhook_events_total", map[string]string{"type": "unknown", "outcome": "ignored"}},
		{"curio_subscription_transitions_total", map[string]string{"from": "incomplete", "to": "active"}},
		{"curio_subscription_transitions_rejected_total", map[string]string{"from": "canceled", "to": "active"}},
	}
	for _, tc := range cases {
		got, err := fetchCounterValue(mfs, tc.name, tc.labels)
		if err != nil {
			t.Fatalf("fetch %s: %v", tc.name, err)
		}
		if got != 1 {
			t.Fatalf("expected %s%v=1, got %v", tc.name, tc.labels, got)
		}
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
