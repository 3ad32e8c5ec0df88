// Package metrics provides the Prometheus collectors exported by clipwatch.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Poll outcomes used as the "outcome" label of clipwatch_polls_total.
const (
	OutcomeProcessing = "processing"
	OutcomeCompleted  = "completed"
	OutcomeError      = "error"
)

// Metrics groups the collectors and the registry they are registered in.
type Metrics struct {
	registry *prometheus.Registry

	Polls           *prometheus.CounterVec
	PollDuration    prometheus.Histogram
	SessionsActive  prometheus.Gauge
	GuardRejections prometheus.Counter
}

// New creates the collectors and registers them, together with the Go and
// process collectors, in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clipwatch_polls_total",
			Help: "Status polls by outcome.",
		}, []string{"outcome"}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clipwatch_poll_duration_seconds",
			Help:    "Latency of status requests.",
			Buckets: prometheus.DefBuckets,
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clipwatch_sessions_active",
			Help: "Page sessions with a running poll loop.",
		}),
		GuardRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipwatch_guard_rejections_total",
			Help: "Form submissions rejected for an invalid video URL.",
		}),
	}

	m.registry.MustRegister(
		m.Polls,
		m.PollDuration,
		m.SessionsActive,
		m.GuardRejections,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObservePoll records one poll. outcome is one of the Outcome constants.
func (m *Metrics) ObservePoll(outcome string, seconds float64) {
	m.Polls.WithLabelValues(outcome).Inc()
	m.PollDuration.Observe(seconds)
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
