package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the index metrics. Each Registry owns a private Prometheus
// registry, so tests can create as many as they like.
type Registry struct {
	// Build Metrics
	IndexBuildsTotal    *prometheus.CounterVec
	IndexBuildDuration  *prometheus.HistogramVec
	IndexBuildBytes     prometheus.Histogram
	IndexPartitionsSize prometheus.Histogram

	// Reader Metrics
	IndexOpensTotal   *prometheus.CounterVec
	IndexLookupsTotal *prometheus.CounterVec

	// Search Metrics
	SearchQueriesTotal      *prometheus.CounterVec
	SearchDuration          prometheus.Histogram
	SearchPartitionsScanned prometheus.Histogram

	// Store Metrics
	StoreTransfersTotal *prometheus.CounterVec
	StoreTransferBytes  *prometheus.CounterVec

	// System Metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.Mutex
}

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusMissing = "not_found"
)

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with every metric initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initBuildMetrics()
	r.initReaderMetrics()
	r.initSearchMetrics()
	r.initStoreMetrics()
	r.initSystemMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}
