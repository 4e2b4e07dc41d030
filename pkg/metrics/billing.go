package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeStale     = "stale"
	OutcomeFailed    = "failed"
)

// BillingMetrics counts Stripe webhook deliveries and subscription state moves.
type BillingMetrics struct {
	webhooks    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	rejected    *prometheus.CounterVec
}

// NewBillingMetrics registers the billing counters on reg. A nil registerer
// yields a no-op recorder.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	m := &BillingMetrics{
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stripe",
			Name:      "webhook_events_total",
			Help:      "Stripe webhook deliveries by event type and outcome.",
		}, []string{"type", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "transitions_total",
			Help:      "Applied subscription state transitions.",
		}, []string{"from", "to"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "transitions_rejected_total",
			Help:      "Subscription transitions refused by the state table.",
		}, []string{"from", "to"}),
	}
	reg.MustRegister(m.webhooks, m.transitions, m.rejected)
	return m
}

// ObserveWebhook counts one delivery.
func (m *BillingMetrics) ObserveWebhook(eventType, outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveTransition counts an applied state change.
func (m *BillingMetrics) ObserveTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveRejectedTransition counts a refused state change.
func (m *BillingMetrics) ObserveRejectedTransition(from, to string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}
