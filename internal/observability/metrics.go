package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports the HTTP-layer Prometheus series: request counts and
// latency histograms labeled by route and status.
type Metrics struct {
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
}

// NewMetrics builds a fresh registry and the two HTTP series.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parksuite_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"route", "method", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "parksuite_http_requests_total",
			Help: "Total HTTP requests handled.",
		}, []string{"route", "method", "status"}),
	}
	registry.MustRegister(m.requestDuration, m.requestTotal)
	return m
}

// Observe records one completed request.
func (m *Metrics) Observe(route, method string, status int, elapsed time.Duration) {
	labels := []string{route, method, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(elapsed.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

// Handler returns the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
