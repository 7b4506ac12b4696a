// Package metrics exposes Prometheus instruments for the reminder engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Passes            prometheus.Counter
	PassDuration      prometheus.Histogram
	Triggers          *prometheus.CounterVec
	RemindersSchedule *prometheus.CounterVec
	RemindersCancel   *prometheus.CounterVec
	Dispatched        *prometheus.CounterVec
	Failures          *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Passes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "upkeep",
			Name:      "reevaluation_passes_total",
			Help:      "Completed reevaluation passes.",
		}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "upkeep",
			Name:      "reevaluation_pass_seconds",
			Help:      "Duration of reevaluation passes.",
			Buckets:   prometheus.DefBuckets,
		}),
		Triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upkeep",
			Name:      "reevaluation_triggers_total",
			Help:      "Data-changed notifications received, by source.",
		}, []string{"source"}),
		RemindersSchedule: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upkeep",
			Name:      "reminders_scheduled_total",
			Help:      "Reminders scheduled, by kind.",
		}, []string{"kind"}),
		RemindersCancel: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upkeep",
			Name:      "reminders_cancelled_total",
			Help:      "Reminders cancelled, by kind.",
		}, []string{"kind"}),
		Dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upkeep",
			Name:      "reminders_dispatched_total",
			Help:      "Reminders delivered, by channel.",
		}, []string{"channel"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "upkeep",
			Name:      "failures_total",
			Help:      "Recovered failures, by operation.",
		}, []string{"op"}),
	}

	m.registry.MustRegister(m.Passes, m.PassDuration, m.Triggers,
		m.RemindersSchedule, m.RemindersCancel, m.Dispatched, m.Failures)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObservePass(seconds float64) {
	if m == nil {
		return
	}
	m.Passes.Inc()
	m.PassDuration.Observe(seconds)
}

func (m *Metrics) Trigger(source string) {
	if m == nil {
		return
	}
	m.Triggers.WithLabelValues(source).Inc()
}

func (m *Metrics) Scheduled(kind string) {
	if m == nil {
		return
	}
	m.RemindersSchedule.WithLabelValues(kind).Inc()
}

func (m *Metrics) Cancelled(kind string) {
	if m == nil {
		return
	}
	m.RemindersCancel.WithLabelValues(kind).Inc()
}

func (m *Metrics) Delivered(channel string) {
	if m == nil {
		return
	}
	m.Dispatched.WithLabelValues(channel).Inc()
}

func (m *Metrics) Failure(op string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(op).Inc()
}
