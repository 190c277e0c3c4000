// Package metrics exposes the monitor's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	cycles        prometheus.Counter
	cycleAborts   prometheus.Counter
	cycleDuration prometheus.Histogram
	skippedTicks  prometheus.Counter
	probes        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	persistErrors prometheus.Counter
	notifications *prometheus.CounterVec
	analyses      *prometheus.CounterVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to avoid clashing with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Name: "uptime_cycles_total",
			Help: "Completed monitoring cycles.",
		}),
		cycleAborts: f.NewCounter(prometheus.CounterOpts{
			Name: "uptime_cycle_aborts_total",
			Help: "Cycles aborted because active targets could not be read.",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "uptime_cycle_duration_seconds",
			Help:    "Wall time of a monitoring cycle.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		skippedTicks: f.NewCounter(prometheus.CounterOpts{
			Name: "uptime_skipped_ticks_total",
			Help: "Ticks dropped because a cycle was still running.",
		}),
		probes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "uptime_probes_total",
			Help: "Probe results by status and failure kind.",
		}, []string{"status", "failure"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "uptime_transitions_total",
			Help: "Status transitions detected.",
		}, []string{"kind"}),
		persistErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "uptime_persist_errors_total",
			Help: "Failed writes of probe results or downtime intervals.",
		}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "uptime_notifications_total",
			Help: "Alert deliveries by result.",
		}, []string{"result"}),
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "uptime_analyses_total",
			Help: "Batch analysis calls by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) CycleCompleted(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) CycleAborted() {
	if m == nil {
		return
	}
	m.cycleAborts.Inc()
}

func (m *Metrics) TicksSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.skippedTicks.Add(float64(n))
}

func (m *Metrics) Probe(status, failure string) {
	if m == nil {
		return
	}
	if failure == "" {
		failure = "none"
	}
	m.probes.WithLabelValues(status, failure).Inc()
}

func (m *Metrics) Transition(kind string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(kind).Inc()
}

func (m *Metrics) PersistError() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}

func (m *Metrics) Notification(ok bool) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result(ok)).Inc()
}

func (m *Metrics) Analysis(ok bool) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
