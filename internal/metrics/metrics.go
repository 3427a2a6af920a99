// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	inFlight         prometheus.Gauge
	rateLimitRejects *prometheus.CounterVec
	upstreamFailures *prometheus.CounterVec
	upstreamForwards *prometheus.CounterVec
}

// New creates the gateway metrics on a private registry
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the gateway",
		}, []string{"method", "class", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "class"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "In-flight HTTP requests",
		}),
		rateLimitRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter",
		}, []string{"class"}),
		upstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Upstream calls that failed at the gateway level",
		}, []string{"reason"}),
		upstreamForwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_forwards_total",
			Help:      "Requests forwarded to the upstream backend",
		}, []string{"method", "status"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.inFlight,
		m.rateLimitRejects,
		m.upstreamFailures,
		m.upstreamForwards,
	)

	return m
}

// Handler returns the /metrics endpoint handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a completed request
func (m *Metrics) RecordHTTPRequest(method, class string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, class, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, class).Observe(duration.Seconds())
}

// IncrementInFlight increments the in-flight gauge
func (m *Metrics) IncrementInFlight() {
	m.inFlight.Inc()
}

// DecrementInFlight decrements the in-flight gauge
func (m *Metrics) DecrementInFlight() {
	m.inFlight.Dec()
}

// RecordRateLimitReject records an admission rejection
func (m *Metrics) RecordRateLimitReject(class string) {
	m.rateLimitRejects.WithLabelValues(class).Inc()
}

// RecordUpstreamFailure records a gateway-level upstream failure
func (m *Metrics) RecordUpstreamFailure(reason string) {
	m.upstreamFailures.WithLabelValues(reason).Inc()
}

// RecordUpstreamForward records a forwarded request and the status the
// upstream answered with.
func (m *Metrics) RecordUpstreamForward(method string, status int) {
	m.upstreamForwards.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
