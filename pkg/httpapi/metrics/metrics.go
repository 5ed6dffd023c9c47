// Package metrics exposes the control plane's own process metrics:
// HTTP request counts/latency, controller tick counters, and gauges for
// open SSE streams and buffer-registry jobs, scraped
// from /metrics alongside the rest of the cluster's Prometheus targets.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector the control plane registers. Each
// component that wants a counter or gauge takes this struct rather than
// reaching for the global registry, so tests can give it an isolated one.
type Metrics struct {
	// Gatherer is what the /metrics handler scrapes; it's the same
	// registry every collector below was registered against.
	Gatherer prometheus.Gatherer

	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec

	ControllerTicksTotal *prometheus.CounterVec
	ControllerTickErrors *prometheus.CounterVec
	ActiveStreamCount    prometheus.Gauge
	BufferRegistryJobs   prometheus.Gauge
}

// New registers every collector against a fresh registry, for a process
// that mounts /metrics straight off the returned Gatherer.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers every collector against reg, so a test can pass
// a fresh prometheus.NewRegistry() and avoid collisions across runs.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Gatherer: reg,
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "plogserver_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "method", "status"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plogserver_http_requests_total",
			Help: "Total HTTP requests served.",
		}, []string{"endpoint", "method", "status"}),
		ControllerTicksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plogserver_controller_ticks_total",
			Help: "Total controller ticks, by controller name.",
		}, []string{"controller"}),
		ControllerTickErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plogserver_controller_tick_errors_total",
			Help: "Total controller ticks that returned an error, by controller name.",
		}, []string{"controller"}),
		ActiveStreamCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plogserver_active_sse_streams",
			Help: "Number of currently open SSE connections.",
		}),
		BufferRegistryJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plogserver_buffer_registry_jobs",
			Help: "Number of jobs currently tracked by the resource metrics buffer registry.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestDuration,
		m.HTTPRequestsTotal,
		m.ControllerTicksTotal,
		m.ControllerTickErrors,
		m.ActiveStreamCount,
		m.BufferRegistryJobs,
	)
	return m
}

// TickObserved records one controller tick, incrementing the error counter
// too when tickErr is non-nil.
func (m *Metrics) TickObserved(controller string, tickErr error) {
	m.ControllerTicksTotal.WithLabelValues(controller).Inc()
	if tickErr != nil {
		m.ControllerTickErrors.WithLabelValues(controller).Inc()
	}
}
