package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application. Each collector
// owns its registry so several can coexist in one process (tests, lambda).
type Collector struct {
	registry *prometheus.Registry

	// Echo metrics
	EchoRequests *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// WebSocket metrics
	SessionsActive  prometheus.Gauge
	SessionsTotal   prometheus.Counter
	Frames          *prometheus.CounterVec
	SessionFailures *prometheus.CounterVec

	// SSE metrics
	SSEClients prometheus.Gauge
	SSEEvents  prometheus.Counter

	// Computation metrics
	ComputeRuns        *prometheus.CounterVec
	ComputeStepSeconds *prometheus.HistogramVec
	BackgroundFailures prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		EchoRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "echo_total",
				Help:      "Echo count by HTTP method",
			},
			[]string{"method"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "websocket_sessions_active",
				Help:      "Number of registered WebSocket sessions",
			},
		),
		SessionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_sessions_total",
				Help:      "Total number of WebSocket sessions created",
			},
		),
		Frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_frames_total",
				Help:      "WebSocket frames by direction",
			},
			[]string{"direction"},
		),
		SessionFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "websocket_session_failures_total",
				Help:      "WebSocket session failures by kind",
			},
			[]string{"kind"},
		),
		SSEClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sse_clients_active",
				Help:      "Number of connected Server-Sent Events clients",
			},
		),
		SSEEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sse_events_total",
				Help:      "Total number of heartbeat events sent",
			},
		),
		ComputeRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compute_runs_total",
				Help:      "Expensive computation runs by outcome",
			},
			[]string{"outcome"},
		),
		ComputeStepSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "compute_step_duration_seconds",
				Help:      "Duration of each computation pipeline step",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"step"},
		),
		BackgroundFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compute_background_failures_total",
				Help:      "Background workflow failures swallowed by the pipeline",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.EchoRequests,
		c.HTTPRequests,
		c.HTTPDuration,
		c.SessionsActive,
		c.SessionsTotal,
		c.Frames,
		c.SessionFailures,
		c.SSEClients,
		c.SSEEvents,
		c.ComputeRuns,
		c.ComputeStepSeconds,
		c.BackgroundFailures,
	)

	return c
}

// GetRegistry returns the Prometheus registry for this collector
func (c *Collector) GetRegistry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		Registry: c.registry,
	})
}

// IncEcho records one echoed request.
func (c *Collector) IncEcho(method string) {
	c.EchoRequests.WithLabelValues(method).Inc()
}
