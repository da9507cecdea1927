// Package indexstore persists serialized index blobs on local disk or in S3,
// opens index files through a memory map, and packs index files into models
// as associated files.
package indexstore

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/dd0wney/scann-ondevice/pkg/logging"
	"github.com/dd0wney/scann-ondevice/pkg/metrics"
	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

// Store reads and writes named index blobs
type Store interface {
	// Get returns the blob stored under name. A missing blob is a
	// scann NotFound error.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put stores data under name, replacing any previous blob
	Put(ctx context.Context, name string, data []byte) error
}

// Options configures logging and metrics for a store
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Registry // nil disables metrics
}

// Transfer directions used in logs and metrics
const (
	directionGet = "get"
	directionPut = "put"
)

// validName rejects empty names and names escaping the store root
func validName(op, name string) error {
	clean := path.Clean(name)
	if name == "" || strings.HasPrefix(name, "/") || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return scann.NewError(op).InvalidArgument().Key(name).Msgf("invalid blob name").Err()
	}
	return nil
}

// transfer wraps one store call with timing, logging and metrics
type transfer struct {
	backend string
	logger  logging.Logger
	metrics *metrics.Registry
}

func newTransfer(backend string, opts Options) transfer {
	return transfer{
		backend: backend,
		logger:  logging.OrDefault(opts.Logger).With(logging.Component("index_store"), logging.String("backend", backend)),
		metrics: opts.Metrics,
	}
}

func (t transfer) record(direction, name string, size int, start time.Time, err error) {
	if t.metrics != nil {
		t.metrics.RecordTransfer(t.backend, direction, int64(size), err)
	}
	if err != nil {
		if !scann.IsNotFound(err) {
			t.logger.Warn("transfer failed",
				logging.Operation(direction), logging.Key(name), logging.Error(err))
		}
		return
	}
	t.logger.Debug("transfer complete",
		logging.Operation(direction), logging.Key(name), logging.Bytes(size), logging.Latency(time.Since(start)))
}
