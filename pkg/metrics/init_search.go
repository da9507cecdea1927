package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initSearchMetrics() {
	r.SearchQueriesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scann_search_queries_total",
			Help: "Total number of nearest-neighbour queries",
		},
		[]string{"status"},
	)

	r.SearchDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scann_search_duration_seconds",
			Help:    "Query duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	r.SearchPartitionsScanned = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scann_search_partitions_scanned",
			Help:    "Number of partitions scanned per query",
			Buckets: prometheus.LinearBuckets(1, 4, 10),
		},
	)
}
