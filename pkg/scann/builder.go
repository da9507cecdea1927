package scann

import (
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	"github.com/dd0wney/scann-ondevice/pkg/logging"
	"github.com/dd0wney/scann-ondevice/pkg/memfile"
	"github.com/dd0wney/scann-ondevice/pkg/metrics"
	"github.com/dd0wney/scann-ondevice/pkg/sstable"
)

// IndexedArtifacts is the input to an index build. Exactly one of
// HashedDatabase and FloatDatabase must be non-nil; an empty non-nil slice
// counts as present. A nil PartitionAssignment places every embedding in
// partition 0.
type IndexedArtifacts struct {
	EmbeddingDim uint32
	Config       ScannConfig
	UserInfo     string

	// PartitionAssignment holds one partition index per embedding
	PartitionAssignment []uint32
	// Metadata holds one string per embedding
	Metadata []string

	HashedDatabase []uint8
	FloatDatabase  []float32
}

// BuilderOptions configures index builds
type BuilderOptions struct {
	// Table options; Compression is set from the compression flag of each build
	Table   sstable.Options
	Logger  logging.Logger
	Metrics *metrics.Registry // nil disables metrics
}

// DefaultBuilderOptions returns the options used by CreateIndexBuffer
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		Table:  sstable.DefaultOptions(),
		Logger: logging.NewNopLogger(),
	}
}

// Builder turns IndexedArtifacts into serialized index buffers.
// A Builder holds no per-build state and is safe for concurrent use.
type Builder struct {
	opts   BuilderOptions
	logger logging.Logger
}

// NewBuilder creates a builder with the given options
func NewBuilder(opts BuilderOptions) *Builder {
	return &Builder{
		opts:   opts,
		logger: logging.OrDefault(opts.Logger).With(logging.Component("index_builder")),
	}
}

// CreateIndexBuffer builds a serialized index with default options
func CreateIndexBuffer(a IndexedArtifacts, compression bool) ([]byte, error) {
	return NewBuilder(DefaultBuilderOptions()).Build(a, compression)
}

// database is the validated element-type view of the artifacts
type database struct {
	typ   EmbeddingType
	count int
	// appendEmbedding appends the raw bytes of embedding i to dst
	appendEmbedding func(dst []byte, i int) []byte
}

func (a *IndexedArtifacts) database() (database, error) {
	hashed, float := a.HashedDatabase != nil, a.FloatDatabase != nil
	if hashed && float {
		return database{}, NewError("build").InvalidArgument().
			Msgf("can not have both float database and hashed database").Err()
	}
	if !hashed && !float {
		return database{}, NewError("build").InvalidArgument().
			Msgf("need either hashed_database or float_database").Err()
	}
	if a.EmbeddingDim == 0 {
		return database{}, NewError("build").InvalidArgument().
			Msgf("embedding_dim must be positive").Err()
	}

	dim := int(a.EmbeddingDim)
	if hashed {
		db := a.HashedDatabase
		return database{
			typ:   EmbeddingTypeUint8,
			count: len(db) / dim,
			appendEmbedding: func(dst []byte, i int) []byte {
				return append(dst, db[i*dim:(i+1)*dim]...)
			},
		}, checkRemainder(len(db), dim)
	}
	db := a.FloatDatabase
	return database{
		typ:   EmbeddingTypeFloat,
		count: len(db) / dim,
		appendEmbedding: func(dst []byte, i int) []byte {
			for _, v := range db[i*dim : (i+1)*dim] {
				dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
			}
			return dst
		},
	}, checkRemainder(len(db), dim)
}

func checkRemainder(n, dim int) error {
	if n%dim != 0 {
		return NewError("build").InvalidArgument().
			Msgf("database holds %d values, not a multiple of embedding_dim %d", n, dim).Err()
	}
	return nil
}

// partitionedData is the database regrouped by partition
type partitionedData struct {
	embeddings [][]byte
	metadata   []string // partition-major
	offsets    []uint32
}

func (a *IndexedArtifacts) partition(db database) (*partitionedData, error) {
	numPartitions := 1
	if a.PartitionAssignment != nil {
		if len(a.PartitionAssignment) != len(a.Metadata) {
			return nil, NewError("build").InvalidArgument().
				Msgf("size of partition assignment (%d) and metadata (%d) mismatch", len(a.PartitionAssignment), len(a.Metadata)).Err()
		}
		numPartitions = a.Config.Partitioner.NumPartitions()
	}
	if db.count != len(a.Metadata) {
		return nil, NewError("build").InvalidArgument().
			Msgf("number of embeddings (%d) differs from number of metadata (%d)", db.count, len(a.Metadata)).Err()
	}

	embeddings := make([][]byte, numPartitions)
	members := make([][]int, numPartitions)
	for i := range a.Metadata {
		p := 0
		if a.PartitionAssignment != nil {
			p = int(a.PartitionAssignment[i])
		}
		if p >= numPartitions {
			return nil, NewError("build").InvalidArgument().
				Msgf("partition index %d is larger than number of partitions: %d", p, numPartitions).Err()
		}
		embeddings[p] = db.appendEmbedding(embeddings[p], i)
		members[p] = append(members[p], i)
	}

	out := &partitionedData{
		embeddings: embeddings,
		metadata:   make([]string, 0, len(a.Metadata)),
		offsets:    make([]uint32, 0, numPartitions),
	}
	for _, m := range members {
		out.offsets = append(out.offsets, uint32(len(out.metadata)))
		for _, i := range m {
			out.metadata = append(out.metadata, a.Metadata[i])
		}
	}
	return out, nil
}

// Build validates the artifacts and returns the serialized index. On error no
// buffer is returned.
func (b *Builder) Build(a IndexedArtifacts, compression bool) ([]byte, error) {
	logger := b.logger.With(logging.BuildID(uuid.NewString()))
	timer := logging.StartTimer(logger, "index built")

	tableOpts := b.opts.Table
	tableOpts.Compression = sstable.NoCompression
	if compression {
		tableOpts.Compression = sstable.SnappyCompression
	}

	buf, stats, err := b.build(logger, &a, tableOpts)
	if b.opts.Metrics != nil {
		b.opts.Metrics.RecordBuild(tableOpts.Compression.String(), len(buf), timer.Elapsed(), err)
	}
	if err != nil {
		logger.Warn("index build failed", logging.Error(err))
		return nil, err
	}

	timer.End(
		logging.Count(stats.embeddings),
		logging.Int("partitions", stats.partitions),
		logging.Bytes(len(buf)),
		logging.String("compression", tableOpts.Compression.String()),
		logging.String("embedding_type", stats.typ.String()),
	)
	return buf, nil
}

type buildStats struct {
	typ        EmbeddingType
	embeddings int
	partitions int
}

func (b *Builder) build(logger logging.Logger, a *IndexedArtifacts, tableOpts sstable.Options) ([]byte, buildStats, error) {
	db, err := a.database()
	if err != nil {
		return nil, buildStats{}, err
	}
	parts, err := a.partition(db)
	if err != nil {
		return nil, buildStats{}, err
	}

	config := IndexConfig{
		ScannConfig:            a.Config,
		EmbeddingType:          db.typ,
		EmbeddingDim:           a.EmbeddingDim,
		GlobalPartitionOffsets: parts.offsets,
	}

	var buf []byte
	file, err := memfile.Create(&buf)
	if err != nil {
		return nil, buildStats{}, NewError("build").InvalidArgument().Cause(err).Err()
	}
	table := sstable.NewBuilder(file, tableOpts)

	add := func(key string, value []byte) error {
		if err := table.Add([]byte(key), value); err != nil {
			table.Abandon()
			return fromTableError("build", key, "unable to add record", err)
		}
		return nil
	}

	for _, ks := range lexicalSlots(len(parts.embeddings), PartitionKey) {
		data := parts.embeddings[ks.slot]
		if err := add(ks.key, data); err != nil {
			return nil, buildStats{}, err
		}
		logger.Debug("partition written", logging.Partition(ks.slot), logging.Bytes(len(data)))
		if b.opts.Metrics != nil {
			b.opts.Metrics.RecordPartition(len(data))
		}
	}
	if err := add(IndexConfigKey, config.Marshal()); err != nil {
		return nil, buildStats{}, err
	}
	for _, ks := range lexicalSlots(len(parts.metadata), MetadataKey) {
		if err := add(ks.key, []byte(parts.metadata[ks.slot])); err != nil {
			return nil, buildStats{}, err
		}
	}
	if err := add(UserInfoKey, []byte(a.UserInfo)); err != nil {
		return nil, buildStats{}, err
	}

	if err := table.Finish(); err != nil {
		return nil, buildStats{}, fromTableError("build", "", "unable to finish table", err)
	}
	if err := file.Close(); err != nil {
		return nil, buildStats{}, NewError("build").Cause(err).Err()
	}

	return buf, buildStats{
		typ:        db.typ,
		embeddings: db.count,
		partitions: len(parts.embeddings),
	}, nil
}
