package search

import (
	"github.com/viterin/vek/vek32"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

// Partitioner maps a query to the partitions worth searching
type Partitioner interface {
	// Partition returns the n closest partitions to query, closest first.
	// n is clamped to NumPartitions.
	Partition(query []float32, n int) ([]int, error)
	NumPartitions() int
	// Dimension returns the expected query dimension, if the partitioner has one
	Dimension() (int, bool)
}

// LeafPartitioner scores queries against one centroid per partition
type LeafPartitioner struct {
	leaves [][]float32
	norms  []float32
	dim    int
	scorer scorer
}

// NoOpPartitioner places everything in partition 0
type NoOpPartitioner struct{}

// NewPartitioner builds a partitioner from config. A nil config gives a
// NoOpPartitioner; leaves of differing dimension are rejected.
func NewPartitioner(config *scann.PartitionerConfig) (Partitioner, error) {
	if config == nil {
		return NoOpPartitioner{}, nil
	}
	s, err := scorerFor(config.QueryDistance)
	if err != nil {
		return nil, err
	}

	p := &LeafPartitioner{
		leaves: make([][]float32, len(config.Leaves)),
		norms:  make([]float32, len(config.Leaves)),
		scorer: s,
	}
	for i, leaf := range config.Leaves {
		if i == 0 {
			p.dim = len(leaf.Dimensions)
		} else if len(leaf.Dimensions) != p.dim {
			return nil, scann.NewError("new_partitioner").InvalidArgument().
				Msgf("dimension mismatch at leaf %d: expected %d but was %d", i, p.dim, len(leaf.Dimensions)).Err()
		}
		p.leaves[i] = leaf.Dimensions
		p.norms[i] = vek32.Dot(leaf.Dimensions, leaf.Dimensions)
	}
	return p, nil
}

// NumPartitions returns the number of leaves
func (p *LeafPartitioner) NumPartitions() int {
	return len(p.leaves)
}

// Dimension returns the leaf dimension
func (p *LeafPartitioner) Dimension() (int, bool) {
	return p.dim, true
}

// Partition returns the n leaves closest to query, closest first. Under
// squared L2 leaves rank by ||l||² - 2 l·q, under dot product by -l·q.
func (p *LeafPartitioner) Partition(query []float32, n int) ([]int, error) {
	if len(p.leaves) == 0 {
		return nil, scann.NewError("partition").InvalidArgument().Msgf("partitioner has no leaves").Err()
	}
	if len(query) != p.dim {
		return nil, scann.NewError("partition").InvalidArgument().
			Msgf("query dimension is %d, %d expected", len(query), p.dim).Err()
	}
	if n < 1 {
		return nil, scann.NewError("partition").InvalidArgument().
			Msgf("number of partitions to search must be positive, got %d", n).Err()
	}
	n = min(n, len(p.leaves))

	top := newTopN(n)
	for i, leaf := range p.leaves {
		top.push(candidate{index: uint32(i), distance: p.score(i, leaf, query)})
	}

	ranked := top.sorted()
	out := make([]int, len(ranked))
	for i, c := range ranked {
		out[i] = int(c.index)
	}
	return out, nil
}

func (p *LeafPartitioner) score(i int, leaf, query []float32) float32 {
	dot := vek32.Dot(leaf, query)
	if p.scorer.measure == scann.DistanceDotProduct {
		return -dot
	}
	return p.norms[i] - 2*dot
}

// Partition returns partition 0 for any query
func (NoOpPartitioner) Partition(query []float32, n int) ([]int, error) {
	if n < 1 {
		return nil, scann.NewError("partition").InvalidArgument().
			Msgf("number of partitions to search must be positive, got %d", n).Err()
	}
	return []int{0}, nil
}

// NumPartitions returns 1
func (NoOpPartitioner) NumPartitions() int { return 1 }

// Dimension reports that any query dimension is accepted
func (NoOpPartitioner) Dimension() (int, bool) { return 0, false }

// Assign returns the closest partition of every embedding in db, a flat
// slice of dim-sized vectors. The result is suitable as
// IndexedArtifacts.PartitionAssignment.
func Assign(p Partitioner, db []float32, dim int) ([]uint32, error) {
	if dim <= 0 || len(db)%dim != 0 {
		return nil, scann.NewError("assign").InvalidArgument().
			Msgf("database of %d values does not split into %d-dimensional embeddings", len(db), dim).Err()
	}
	if p.NumPartitions() == 0 {
		return nil, scann.NewError("assign").InvalidArgument().Msgf("partitioner has no leaves").Err()
	}
	out := make([]uint32, len(db)/dim)
	for i := range out {
		nearest, err := p.Partition(db[i*dim:(i+1)*dim], 1)
		if err != nil {
			return nil, err
		}
		out[i] = uint32(nearest[0])
	}
	return out, nil
}
