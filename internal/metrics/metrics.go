// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and for maintenance operations. Collectors live on a private registry so
// independently wired servers never trample each other's registrations.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "plinth"

// Metrics holds the service collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	maintenanceOps      *prometheus.CounterVec
	maintenanceDuration *prometheus.HistogramVec
	artifactSize        prometheus.Histogram
}

// New returns a registered metrics set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served, by method, route and status.",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency, by method and route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		maintenanceOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "maintenance_operations_total",
				Help:      "Backup, restore and delete operations, by outcome.",
			},
			[]string{"operation", "status"},
		),
		maintenanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "maintenance_duration_seconds",
				Help:      "Duration of maintenance operations.",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
			},
			[]string{"operation"},
		),
		artifactSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backup_artifact_bytes",
				Help:      "Size of produced backup artifacts.",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.maintenanceOps,
		m.maintenanceDuration,
		m.artifactSize,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served request under its matched route
// pattern.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	code := strconv.Itoa(status)
	m.requests.WithLabelValues(method, route, code).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveMaintenance records the outcome and duration of one maintenance
// operation.
func (m *Metrics) ObserveMaintenance(operation string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.maintenanceOps.WithLabelValues(operation, status).Inc()
	m.maintenanceDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveArtifactSize records the size of a written backup artifact.
func (m *Metrics) ObserveArtifactSize(bytes int64) {
	m.artifactSize.Observe(float64(bytes))
}
