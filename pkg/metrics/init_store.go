package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initStoreMetrics() {
	r.StoreTransfersTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scann_store_transfers_total",
			Help: "Total number of index uploads and downloads",
		},
		[]string{"backend", "direction", "status"},
	)

	r.StoreTransferBytes = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "scann_store_transfer_bytes_total",
			Help: "Bytes moved to or from index stores",
		},
		[]string{"backend", "direction"},
	)
}
