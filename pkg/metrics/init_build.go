package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initBuildMetrics() {
	r.IndexBuildsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scann_index_builds_total",
			Help: "Total number of index buffers built",
		},
		[]string{"status", "compression"},
	)

	r.IndexBuildDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scann_index_build_duration_seconds",
			Help:    "Index build duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"compression"},
	)

	r.IndexBuildBytes = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scann_index_build_bytes",
			Help:    "Size of built index buffers in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	r.IndexPartitionsSize = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scann_index_partition_bytes",
			Help:    "Size of individual partition payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 10),
		},
	)
}
