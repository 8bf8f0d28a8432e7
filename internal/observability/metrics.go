package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the server's Prometheus instrumentation. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	backendRequests *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	pollTicks       *prometheus.CounterVec
	subscriptions   prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		backendRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optimizer_backend_requests_total",
				Help: "Requests sent to the optimization backend by operation and status code",
			},
			[]string{"op", "code"},
		),
		backendLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optimizer_backend_request_duration_seconds",
				Help:    "Latency of optimization backend requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		pollTicks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optimizer_poll_ticks_total",
				Help: "Status polls by observed job state",
			},
			[]string{"state"},
		),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "optimizer_active_subscriptions",
			Help: "Jobs currently being watched",
		}),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optimizer_http_requests_total",
				Help: "HTTP requests served by route and status code",
			},
			[]string{"route", "code"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "optimizer_http_request_duration_seconds",
				Help:    "Latency of HTTP requests served",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.backendRequests,
		m.backendLatency,
		m.pollTicks,
		m.subscriptions,
		m.httpRequests,
		m.httpLatency,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveBackendRequest records one backend call. A zero status means the transport failed.
func (m *Metrics) ObserveBackendRequest(op string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	m.backendRequests.WithLabelValues(op, code).Inc()
	m.backendLatency.WithLabelValues(op).Observe(d.Seconds())
}

// ObservePollTick records one status poll.
func (m *Metrics) ObservePollTick(state string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(state).Inc()
}

// SubscriptionOpened increments the active subscription gauge.
func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.subscriptions.Inc()
}

// SubscriptionClosed decrements the active subscription gauge.
func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.subscriptions.Dec()
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(route string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
	m.httpLatency.WithLabelValues(route).Observe(d.Seconds())
}
