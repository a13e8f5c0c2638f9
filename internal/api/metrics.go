package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rgehrsitz/lrcm/internal/domain"
)

// Metrics holds the run counters exposed on /metrics
type Metrics struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	diagnostics *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrcm",
			Name:      "runs_total",
			Help:      "Measurement runs by run type and outcome.",
		}, []string{"run", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lrcm",
			Name:      "run_duration_seconds",
			Help:      "Measurement run latency by run type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"run"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lrcm",
			Name:      "diagnostics_total",
			Help:      "Non-fatal diagnostics by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.runs, m.duration, m.diagnostics,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// observe records one finished run and its latency
func (m *Metrics) observe(run string, started time.Time, err error, ds domain.Diagnostics) {
	m.duration.WithLabelValues(run).Observe(time.Since(started).Seconds())
	m.count(run, err, ds)
}

func (m *Metrics) count(run string, err error, ds domain.Diagnostics) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.runs.WithLabelValues(run, outcome).Inc()
	for _, d := range ds {
		m.diagnostics.WithLabelValues(string(d.Kind)).Inc()
	}
}
