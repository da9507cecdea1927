package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var processStart = time.Now()

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// RecordBuild records a finished index build
func (r *Registry) RecordBuild(compression string, size int, duration time.Duration, err error) {
	r.IndexBuildsTotal.WithLabelValues(statusOf(err), compression).Inc()
	if err != nil {
		return
	}
	r.IndexBuildDuration.WithLabelValues(compression).Observe(duration.Seconds())
	r.IndexBuildBytes.Observe(float64(size))
}

// RecordPartition records the payload size of one written partition
func (r *Registry) RecordPartition(size int) {
	r.IndexPartitionsSize.Observe(float64(size))
}

// RecordOpen records an attempt to open an index buffer
func (r *Registry) RecordOpen(err error) {
	r.IndexOpensTotal.WithLabelValues(statusOf(err)).Inc()
}

// RecordLookup records a lookup of the given record kind ("partition",
// "metadata", "config" or "user_info"). found=false with a nil error
// counts as not_found.
func (r *Registry) RecordLookup(record string, found bool, err error) {
	status := statusOf(err)
	if err == nil && !found {
		status = StatusMissing
	}
	r.IndexLookupsTotal.WithLabelValues(record, status).Inc()
}

// RecordSearch records a nearest-neighbour query
func (r *Registry) RecordSearch(partitionsScanned int, duration time.Duration, err error) {
	r.SearchQueriesTotal.WithLabelValues(statusOf(err)).Inc()
	if err != nil {
		return
	}
	r.SearchDuration.Observe(duration.Seconds())
	r.SearchPartitionsScanned.Observe(float64(partitionsScanned))
}

// RecordTransfer records an upload ("put") or download ("get") against a store backend
func (r *Registry) RecordTransfer(backend, direction string, size int64, err error) {
	r.StoreTransfersTotal.WithLabelValues(backend, direction, statusOf(err)).Inc()
	if err == nil && size > 0 {
		r.StoreTransferBytes.WithLabelValues(backend, direction).Add(float64(size))
	}
}

// UpdateSystemMetrics refreshes uptime, goroutine and heap gauges
func (r *Registry) UpdateSystemMetrics() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	r.UptimeSeconds.Set(time.Since(processStart).Seconds())
	r.GoRoutines.Set(float64(runtime.NumGoroutine()))
	r.MemoryAllocBytes.Set(float64(mem.Alloc))
}

// WriteTextfile refreshes system gauges and writes every metric to path in
// the Prometheus text format, for pickup by a node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	r.UpdateSystemMetrics()
	return prometheus.WriteToTextfile(path, r.registry)
}
