// Package observability holds the Prometheus instrumentation.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the index service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec // labels: endpoint, outcome={ok,client_error,server_error}
	ComputeDuration prometheus.Histogram
	DatasetLoads    *prometheus.CounterVec // labels: outcome={success,error}
	CatalogSearches prometheus.Counter
}

// NewMetrics creates and registers all collectors with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enso_api",
			Name:      "requests_total",
			Help:      "Total API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		ComputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enso_api",
			Name:      "compute_duration_seconds",
			Help:      "Duration of a complete load-compute-annotate cycle.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		DatasetLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enso_api",
			Name:      "dataset_loads_total",
			Help:      "Total NetCDF dataset loads by outcome.",
		}, []string{"outcome"}),
		CatalogSearches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "enso_api",
			Name:      "catalog_searches_total",
			Help:      "Total facet searches against the dataset catalog.",
		}),
	}

	prometheus.MustRegister(
		m.RequestsTotal,
		m.ComputeDuration,
		m.DatasetLoads,
		m.CatalogSearches,
	)
	return m
}
