package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cloud-sandbox/notebook-agent/internal/health"
)

// Startup outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
)

// Metrics holds all Prometheus metrics for the agent bootstrap
type Metrics struct {
	registry *prometheus.Registry

	// Lifecycle metrics
	StartupDuration *prometheus.HistogramVec
	StartupFailures *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	namespace string
}

// NewMetrics creates the bootstrap metrics and registers them on reg.
// A nil reg gets a fresh registry with the Go and process collectors.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m := &Metrics{
		registry:  reg,
		namespace: namespace,

		StartupDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "startup_duration_seconds",
			Help:      "Time from lifecycle entry to agent start or fatal failure",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),
		StartupFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "startup_failures_total",
			Help:      "Fatal startup failures by error class",
		}, []string{"class"}),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests on the health listener",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests on the health listener",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	reg.MustRegister(
		m.StartupDuration,
		m.StartupFailures,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// TrackState exports the health record as gauges read at scrape time.
func (m *Metrics) TrackState(state *health.State) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "initialized",
			Help:      "1 once the agent has started, 0 before",
		}, func() float64 {
			if state.Initialized() {
				return 1
			}
			return 0
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "errors_recorded",
			Help:      "Number of failures recorded in the health state",
		}, func() float64 {
			return float64(state.Snapshot().ErrorCount)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: m.namespace,
			Name:      "uptime_seconds",
			Help:      "Seconds since process start",
		}, func() float64 {
			return state.Uptime().Seconds()
		}),
	)
}

// Handler returns the Prometheus HTTP handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveStartup records how a startup attempt ended. class is empty on
// success.
func (m *Metrics) ObserveStartup(class string, d time.Duration) {
	outcome := OutcomeSuccess
	if class != "" {
		outcome = "failure"
		m.StartupFailures.WithLabelValues(class).Inc()
	}
	m.StartupDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordHTTPRequest records an HTTP request metric
func (m *Metrics) RecordHTTPRequest(method, path, status string, durationSeconds float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(durationSeconds)
}
