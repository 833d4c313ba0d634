// Package metrics exposes gateway counters and HTTP request metrics on a
// private Prometheus registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clubledger/objectgate"
)

const namespace = "objectgate"

// Metrics implements objectgate.Recorder and instruments HTTP handlers.
type Metrics struct {
	reg      *prometheus.Registry
	fallback *prometheus.CounterVec
	broker   *prometheus.CounterVec
	inflight prometheus.Gauge
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// New creates a Metrics instance with a fresh registry. Go runtime and
// process collectors are registered alongside the gateway's own.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	fallback := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fallback_total",
		Help:      "Operations served from local fallback storage, by operation.",
	}, []string{"operation"})
	broker := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broker_failures_total",
		Help:      "Credential broker calls that failed, by operation.",
	}, []string{"operation"})
	inflight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of inflight HTTP requests.",
	})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests processed, partitioned by status code and method.",
	}, []string{"code", "method"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Histogram of latencies for HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"code", "method"})

	reg.MustRegister(
		fallback, broker, inflight, requests, latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		reg:      reg,
		fallback: fallback,
		broker:   broker,
		inflight: inflight,
		requests: requests,
		latency:  latency,
	}
}

// FallbackServed counts one operation that fell back to local storage.
func (m *Metrics) FallbackServed(operation string) {
	m.fallback.WithLabelValues(operation).Inc()
}

// BrokerFailed counts one failed credential broker call.
func (m *Metrics) BrokerFailed(operation string) {
	m.broker.WithLabelValues(operation).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Middleware records inflight requests, request counts and latency.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.inflight.Inc()
		defer m.inflight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		code := strconv.Itoa(rec.status)
		m.requests.WithLabelValues(code, r.Method).Inc()
		m.latency.WithLabelValues(code, r.Method).Observe(time.Since(start).Seconds())
	})
}

var _ objectgate.Recorder = (*Metrics)(nil)
