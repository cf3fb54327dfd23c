// Package telemetry exposes the Prometheus instrumentation for the billing
// pipeline and the HTTP layer.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the service registers.
type Metrics struct {
	// Pipeline
	GenerationsTotal      *prometheus.CounterVec
	GenerationDuration    prometheus.Histogram
	DocumentsConsolidated prometheus.Counter
	ValidationFailures    prometheus.Counter
	ArchiveSizeBytes      prometheus.Histogram

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics builds and registers all collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		GenerationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "generations_total",
			Help:      "Package generation runs by outcome.",
		}, []string{"outcome"}),
		GenerationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "billing",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a full package generation run.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
		DocumentsConsolidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "documents_consolidated_total",
			Help:      "Per-order merged PDFs produced.",
		}),
		ValidationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "validation_failures_total",
			Help:      "Generation runs rejected for incomplete documentation.",
		}),
		ArchiveSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "billing",
			Name:      "archive_size_bytes",
			Help:      "Size of the final zip archive.",
			Buckets:   prometheus.ExponentialBuckets(1<<16, 4, 8),
		}),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.GenerationsTotal,
		m.GenerationDuration,
		m.DocumentsConsolidated,
		m.ValidationFailures,
		m.ArchiveSizeBytes,
		m.RequestsTotal,
		m.RequestDuration,
	)
	return m
}
