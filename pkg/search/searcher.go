package search

import (
	"context"
	"math"
	"time"

	"github.com/viterin/vek/vek32"

	"github.com/dd0wney/scann-ondevice/pkg/logging"
	"github.com/dd0wney/scann-ondevice/pkg/metrics"
	"github.com/dd0wney/scann-ondevice/pkg/parallel"
	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

// Neighbor is one search result
type Neighbor struct {
	// Index is the global metadata index of the embedding
	Index    uint32  `json:"index"`
	Distance float32 `json:"distance"`
	Metadata string  `json:"metadata"`
}

// Options configures a Searcher
type Options struct {
	// MaxResults is the number of neighbors returned per query
	MaxResults int
	// PartitionsToSearch overrides the partitioner's search fraction when positive
	PartitionsToSearch int
	Logger             logging.Logger
	Metrics            *metrics.Registry // nil disables metrics
}

// DefaultOptions returns options returning the 10 nearest neighbors
func DefaultOptions() Options {
	return Options{MaxResults: 10, Logger: logging.NewNopLogger()}
}

// Searcher runs brute-force nearest-neighbor queries over the partitions of
// a float index selected by its partitioner. A Searcher is safe for
// concurrent use.
type Searcher struct {
	index       *scann.Index
	config      *scann.IndexConfig
	partitioner Partitioner
	scorer      scorer
	toSearch    int
	total       uint32
	opts        Options
	logger      logging.Logger
}

// NewSearcher reads the index config once and prepares the partitioner.
// Only FLOAT indexes can be searched.
func NewSearcher(index *scann.Index, opts Options) (*Searcher, error) {
	if opts.MaxResults <= 0 {
		return nil, scann.NewError("new_searcher").InvalidArgument().
			Msgf("max results must be positive, got %d", opts.MaxResults).Err()
	}
	config, err := index.GetIndexConfig()
	if err != nil {
		return nil, err
	}
	if config.EmbeddingType != scann.EmbeddingTypeFloat {
		return nil, scann.NewError("new_searcher").Unimplemented().
			Msgf("searching %v embeddings is not supported", config.EmbeddingType).Err()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	s, err := scorerFor(config.ScannConfig.QueryDistance)
	if err != nil {
		return nil, err
	}

	// Indexes built without a partition assignment hold a single partition
	// even when the config carries a partitioner.
	var partitioner Partitioner = NoOpPartitioner{}
	leaves := config.ScannConfig.Partitioner.NumPartitions()
	switch {
	case leaves > 0 && leaves == config.NumPartitions():
		partitioner, err = NewPartitioner(config.ScannConfig.Partitioner)
		if err != nil {
			return nil, err
		}
	case config.NumPartitions() != 1:
		return nil, scann.NewError("new_searcher").
			Msgf("partitioner has %d leaves but the index stores %d partitions", leaves, config.NumPartitions()).Err()
	}

	total, err := countMetadata(index, config)
	if err != nil {
		return nil, err
	}

	searcher := &Searcher{
		index:       index,
		config:      config,
		partitioner: partitioner,
		scorer:      s,
		toSearch:    partitionsToSearch(config.ScannConfig.Partitioner, partitioner.NumPartitions(), opts.PartitionsToSearch),
		total:       total,
		opts:        opts,
		logger:      logging.OrDefault(opts.Logger).With(logging.Component("searcher")),
	}
	searcher.logger.Debug("searcher ready",
		logging.Int("partitions", partitioner.NumPartitions()),
		logging.Int("partitions_to_search", searcher.toSearch),
		logging.Count(int(total)),
	)
	return searcher, nil
}

// partitionsToSearch is ceil(leaves × search_fraction), at least 1 and at
// most the number of partitions. A fraction outside (0, 1] searches everything.
func partitionsToSearch(config *scann.PartitionerConfig, numPartitions, override int) int {
	if override > 0 {
		return min(override, numPartitions)
	}
	if config == nil || config.SearchFraction <= 0 || config.SearchFraction > 1 {
		return numPartitions
	}
	n := int(math.Ceil(float64(numPartitions) * float64(config.SearchFraction)))
	return max(1, min(n, numPartitions))
}

// countMetadata returns the number of metadata slots: the start of the last
// partition plus its embedding count.
func countMetadata(index *scann.Index, config *scann.IndexConfig) (uint32, error) {
	n := config.NumPartitions()
	if n == 0 {
		return 0, nil
	}
	last, err := index.GetPartitionAtIndex(uint32(n - 1))
	if err != nil {
		return 0, err
	}
	size, err := scann.PartitionLen(last, config)
	if err != nil {
		return 0, err
	}
	return config.GlobalPartitionOffsets[n-1] + uint32(size), nil
}

// Search returns up to MaxResults neighbors of query, closest first
func (s *Searcher) Search(query []float32) ([]Neighbor, error) {
	start := time.Now()
	neighbors, scanned, err := s.search(query)
	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordSearch(scanned, time.Since(start), err)
	}
	return neighbors, err
}

// SearchBatch runs Search for every query on up to workers goroutines.
// Results are in query order; the first failing query's error is returned.
func (s *Searcher) SearchBatch(ctx context.Context, queries [][]float32, workers int) ([][]Neighbor, error) {
	results := make([][]Neighbor, len(queries))
	err := parallel.Map(ctx, workers, len(queries), func(ctx context.Context, i int) error {
		neighbors, err := s.Search(queries[i])
		if err != nil {
			return err
		}
		results[i] = neighbors
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Searcher) search(query []float32) ([]Neighbor, int, error) {
	dim := int(s.config.EmbeddingDim)
	if len(query) != dim {
		return nil, 0, scann.NewError("search").InvalidArgument().
			Msgf("query dimension is %d, index dimension is %d", len(query), dim).Err()
	}
	if s.partitioner.NumPartitions() == 0 {
		return nil, 0, nil
	}

	partitions, err := s.partitioner.Partition(query, s.toSearch)
	if err != nil {
		return nil, 0, err
	}

	queryNorm := vek32.Dot(query, query)
	top := newTopN(s.opts.MaxResults)
	var embeddings []float32
	for _, p := range partitions {
		raw, err := s.index.GetPartitionAtIndex(uint32(p))
		if err != nil {
			return nil, 0, err
		}
		embeddings, err = scann.DecodeFloatPartition(embeddings[:0], raw)
		if err != nil {
			return nil, 0, err
		}
		offset := s.config.GlobalPartitionOffsets[p]
		for j := 0; j+dim <= len(embeddings); j += dim {
			top.push(candidate{
				index:    offset + uint32(j/dim),
				distance: s.scorer.distance(query, embeddings[j:j+dim], queryNorm),
			})
		}
	}

	ranked := top.sorted()
	neighbors := make([]Neighbor, len(ranked))
	for i, c := range ranked {
		metadata, err := s.index.GetMetadataAtIndex(c.index)
		if err != nil {
			return nil, len(partitions), err
		}
		neighbors[i] = Neighbor{Index: c.index, Distance: c.distance, Metadata: metadata}
	}
	return neighbors, len(partitions), nil
}

// Config returns the index config read at construction
func (s *Searcher) Config() *scann.IndexConfig {
	return s.config
}

// NumEmbeddings returns the number of embeddings in the index
func (s *Searcher) NumEmbeddings() uint32 {
	return s.total
}
