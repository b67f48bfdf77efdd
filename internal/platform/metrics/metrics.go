package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid everywhere it is injected; the recording helpers no-op so unit
// tests never need a registry.
type Metrics struct {
	MutationsApplied  *prometheus.CounterVec
	MutationsRejected *prometheus.CounterVec
	ReconcileEvents   *prometheus.CounterVec
	ReconcileDuration prometheus.Histogram
	NotificationsSent prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		MutationsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deltaker_mutations_applied_total",
			Help: "Mutations accepted by the transition engine, by change kind",
		}, []string{"kind"}),
		MutationsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deltaker_mutations_rejected_total",
			Help: "Mutations rejected by validation, by rejection code",
		}, []string{"code"}),
		ReconcileEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "deltaker_reconcile_events_total",
			Help: "Upstream notifications processed, by outcome",
		}, []string{"outcome"}),
		ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "deltaker_reconcile_duration_seconds",
			Help:    "Time spent applying one upstream notification",
			Buckets: prometheus.DefBuckets,
		}),
		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "deltaker_notifications_sent_total",
			Help: "Outbound record notifications published downstream",
		}),
	}
}

func (m *Metrics) RecordMutationApplied(kind string) {
	if m == nil {
		return
	}
	m.MutationsApplied.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordMutationRejected(code string) {
	if m == nil {
		return
	}
	m.MutationsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordReconcileEvent(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ReconcileEvents.WithLabelValues(outcome).Inc()
	m.ReconcileDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordNotificationSent() {
	if m == nil {
		return
	}
	m.NotificationsSent.Inc()
}
