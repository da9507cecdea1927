package scann

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/dd0wney/scann-ondevice/pkg/logging"
	"github.com/dd0wney/scann-ondevice/pkg/metrics"
	"github.com/dd0wney/scann-ondevice/pkg/sstable"
)

// ReaderOptions configures how an index is opened
type ReaderOptions struct {
	// BlockCacheSize is the number of decoded blocks to keep; 0 disables the
	// cache, which suits fully resident buffers.
	BlockCacheSize int
	Logger         logging.Logger
	Metrics        *metrics.Registry // nil disables metrics
}

// DefaultReaderOptions returns the options used by CreateFromIndexBuffer
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{Logger: logging.NewNopLogger()}
}

// Index reads records from a serialized index. The backing buffer is
// borrowed and must outlive the Index and every slice returned from it.
// An Index is immutable once opened and safe for concurrent use.
type Index struct {
	table   *sstable.Reader
	logger  logging.Logger
	metrics *metrics.Registry
}

// CreateFromIndexBuffer opens an index over buf without copying it
func CreateFromIndexBuffer(buf []byte) (*Index, error) {
	return OpenIndex(buf, DefaultReaderOptions())
}

// OpenIndex opens an index over buf with the given options
func OpenIndex(buf []byte, opts ReaderOptions) (*Index, error) {
	if buf == nil {
		err := NewError("open").InvalidArgument().Msgf("buffer cannot be nil").Err()
		recordOpen(opts.Metrics, err)
		return nil, err
	}
	table, err := sstable.OpenBytes(buf, tableOptions(opts))
	return newIndex(table, int64(len(buf)), opts, err)
}

// CreateFromReaderAt opens an index of the given size read through r.
// Inputs that expose their contents through a Bytes() []byte method, such as
// memory-mapped files, are read without copying.
func CreateFromReaderAt(r io.ReaderAt, size int64, opts ReaderOptions) (*Index, error) {
	if r == nil {
		err := NewError("open").InvalidArgument().Msgf("reader cannot be nil").Err()
		recordOpen(opts.Metrics, err)
		return nil, err
	}
	table, err := sstable.Open(r, size, tableOptions(opts))
	return newIndex(table, size, opts, err)
}

func tableOptions(opts ReaderOptions) sstable.Options {
	tableOpts := sstable.DefaultOptions()
	tableOpts.BlockCacheSize = opts.BlockCacheSize
	return tableOpts
}

func recordOpen(m *metrics.Registry, err error) {
	if m != nil {
		m.RecordOpen(err)
	}
}

func newIndex(table *sstable.Reader, size int64, opts ReaderOptions, err error) (*Index, error) {
	logger := logging.OrDefault(opts.Logger).With(logging.Component("index_reader"))
	if err != nil {
		err = fromTableError("open", "", "unable to open index table", err)
		recordOpen(opts.Metrics, err)
		logger.Debug("index open failed", logging.Error(err))
		return nil, err
	}
	recordOpen(opts.Metrics, nil)
	logger.Debug("index opened",
		logging.Int64("size", size),
		logging.Int("blocks", table.NumBlocks()),
	)
	return &Index{table: table, logger: logger, metrics: opts.Metrics}, nil
}

// lookup returns the raw value stored under key
func (idx *Index) lookup(op, record, key string) ([]byte, error) {
	value, err := idx.table.Get([]byte(key))
	if err != nil {
		err = fromTableError(op, key, "unable to find key in the index", err)
	}
	if idx.metrics != nil {
		idx.metrics.RecordLookup(record, err == nil, ignoreNotFound(err))
	}
	return value, err
}

func ignoreNotFound(err error) error {
	if IsNotFound(err) {
		return nil
	}
	return err
}

// GetIndexConfig reads and decodes the index config. A missing record is
// NotFound; an undecodable one is Internal.
func (idx *Index) GetIndexConfig() (*IndexConfig, error) {
	value, err := idx.lookup("get_index_config", "config", IndexConfigKey)
	if err != nil {
		return nil, err
	}
	config, err := UnmarshalIndexConfig(value)
	if err != nil {
		return nil, NewError("get_index_config").Key(IndexConfigKey).
			Msgf("unable to parse index config").Cause(err).Err()
	}
	return config, nil
}

// GetUserInfo returns the user info string stored at build time
func (idx *Index) GetUserInfo() (string, error) {
	value, err := idx.lookup("get_user_info", "user_info", UserInfoKey)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// GetPartitionAtIndex returns the concatenated raw embeddings of partition i.
// The slice aliases the index buffer and must not be modified. An i past the
// last partition is NotFound; callers should bound i by
// IndexConfig.NumPartitions rather than probing.
func (idx *Index) GetPartitionAtIndex(i uint32) ([]byte, error) {
	return idx.lookup("get_partition", "partition", PartitionKey(i))
}

// GetMetadataAtIndex returns the metadata string at global slot i
func (idx *Index) GetMetadataAtIndex(i uint32) (string, error) {
	value, err := idx.lookup("get_metadata", "metadata", MetadataKey(i))
	if err != nil {
		return "", err
	}
	return string(value), nil
}

// Size returns the size of the serialized index in bytes
func (idx *Index) Size() int64 {
	return idx.table.Size()
}

// PartitionLen returns the number of embeddings held in a partition record
func PartitionLen(partition []byte, config *IndexConfig) (int, error) {
	stride := int(config.EmbeddingDim) * config.EmbeddingType.ElementSize()
	if stride == 0 {
		return 0, NewError("partition_len").InvalidArgument().Msgf("embedding_dim must be positive").Err()
	}
	if len(partition)%stride != 0 {
		return 0, NewError("partition_len").InvalidArgument().Msgf(
			"partition holds %d bytes, not a multiple of the %d-byte embedding size", len(partition), stride).Err()
	}
	return len(partition) / stride, nil
}

// DecodeFloatPartition decodes a FLOAT partition record into dst, reusing its
// capacity, and returns the extended slice.
func DecodeFloatPartition(dst []float32, partition []byte) ([]float32, error) {
	if len(partition)%4 != 0 {
		return dst, NewError("decode_partition").InvalidArgument().Msgf(
			"float partition holds %d bytes, not a multiple of 4", len(partition)).Err()
	}
	for off := 0; off < len(partition); off += 4 {
		dst = append(dst, math.Float32frombits(binary.LittleEndian.Uint32(partition[off:])))
	}
	return dst, nil
}
