package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initReaderMetrics() {
	r.IndexOpensTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scann_index_opens_total",
			Help: "Total number of index buffers opened",
		},
		[]string{"status"},
	)

	r.IndexLookupsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scann_index_lookups_total",
			Help: "Total number of record lookups against opened indexes",
		},
		[]string{"record", "status"},
	)
}
