package sstable

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// BlockCache is an LRU cache of decoded data blocks keyed by block offset
type BlockCache struct {
	blocks *lru.Cache[uint64, []byte]

	// Statistics
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats is a point-in-time snapshot of cache statistics
type CacheStats struct {
	Hits    int64
	Misses  int64
	Blocks  int
	HitRate float64
}

// NewBlockCache creates a cache holding up to capacity decoded blocks
func NewBlockCache(capacity int) (*BlockCache, error) {
	blocks, err := lru.New[uint64, []byte](capacity)
	if err != nil {
		return nil, err
	}
	return &BlockCache{blocks: blocks}, nil
}

// Get retrieves a decoded block from the cache
func (bc *BlockCache) Get(offset uint64) ([]byte, bool) {
	block, ok := bc.blocks.Get(offset)
	if ok {
		bc.hits.Add(1)
	} else {
		bc.misses.Add(1)
	}
	return block, ok
}

// Put adds a decoded block to the cache
func (bc *BlockCache) Put(offset uint64, block []byte) {
	bc.blocks.Add(offset, block)
}

// Stats returns cache statistics
func (bc *BlockCache) Stats() CacheStats {
	hits := bc.hits.Load()
	misses := bc.misses.Load()
	stats := CacheStats{
		Hits:   hits,
		Misses: misses,
		Blocks: bc.blocks.Len(),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}
