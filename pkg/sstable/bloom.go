package sstable

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
)

// BloomFilter is a probabilistic data structure for set membership testing
// - False positives possible (may say key exists when it doesn't)
// - False negatives impossible (if it says key doesn't exist, it definitely doesn't)
type BloomFilter struct {
	bits      []byte
	size      int
	hashCount int
}

// bloomHash is the pair of base hashes used for double hashing. The builder
// records these while keys stream in, before the final key count is known.
type bloomHash struct {
	h1, h2 uint64
}

// NewBloomFilter creates a Bloom filter for expectedItems keys using
// bitsPerKey bits per key.
func NewBloomFilter(expectedItems, bitsPerKey int) *BloomFilter {
	if expectedItems <= 0 {
		expectedItems = 1
	}
	if bitsPerKey <= 0 {
		bitsPerKey = 10
	}

	// k = (m/n) * ln(2)
	size := expectedItems * bitsPerKey
	if size < 64 {
		size = 64
	}
	hashCount := int(math.Round(float64(bitsPerKey) * math.Ln2))
	if hashCount < 1 {
		hashCount = 1
	}
	if hashCount > 30 {
		hashCount = 30
	}

	return &BloomFilter{
		bits:      make([]byte, (size+7)/8),
		size:      size,
		hashCount: hashCount,
	}
}

func hashKey(key []byte) bloomHash {
	h1 := fnv.New64a()
	// Note: hash.Hash.Write never returns an error according to the interface contract
	_, _ = h1.Write(key)

	h2 := fnv.New64a()
	_, _ = h2.Write(key)
	_, _ = h2.Write([]byte{0xFF}) // Different seed for hash2

	h := bloomHash{h1: h1.Sum64(), h2: h2.Sum64()}
	// Odd step keeps probes from cycling early
	if h.h2%2 == 0 {
		h.h2++
	}
	return h
}

// Add adds a key to the Bloom filter
func (bf *BloomFilter) Add(key []byte) {
	bf.addHash(hashKey(key))
}

func (bf *BloomFilter) addHash(h bloomHash) {
	for i := 0; i < bf.hashCount; i++ {
		bit := bf.probe(h, i)
		bf.bits[bit/8] |= 1 << (bit % 8)
	}
}

// MayContain checks if a key might be in the set
func (bf *BloomFilter) MayContain(key []byte) bool {
	h := hashKey(key)
	for i := 0; i < bf.hashCount; i++ {
		bit := bf.probe(h, i)
		if bf.bits[bit/8]&(1<<(bit%8)) == 0 {
			return false
		}
	}
	return true
}

// probe returns the i-th bit position: (h1 + i*h2) % size
func (bf *BloomFilter) probe(h bloomHash, i int) int {
	return int((h.h1 + uint64(i)*h.h2) % uint64(bf.size))
}

// Size returns the size of the filter in bits
func (bf *BloomFilter) Size() int {
	return bf.size
}

// HashCount returns the number of hash functions
func (bf *BloomFilter) HashCount() int {
	return bf.hashCount
}

// EstimateFalsePositiveRate estimates current false positive rate
func (bf *BloomFilter) EstimateFalsePositiveRate(itemCount int) float64 {
	// p = (1 - e^(-k*n/m))^k
	k := float64(bf.hashCount)
	n := float64(itemCount)
	m := float64(bf.size)

	return math.Pow(1.0-math.Exp(-k*n/m), k)
}

// MarshalBinary serializes the Bloom filter
// Format: size(4) | hashCount(1) | bits
func (bf *BloomFilter) MarshalBinary() []byte {
	data := make([]byte, 5+len(bf.bits))
	binary.LittleEndian.PutUint32(data[0:], uint32(bf.size))
	data[4] = byte(bf.hashCount)
	copy(data[5:], bf.bits)
	return data
}

// UnmarshalBloomFilter deserializes a filter written by MarshalBinary
func UnmarshalBloomFilter(data []byte) (*BloomFilter, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: bloom filter too short (%d bytes)", ErrCorrupt, len(data))
	}
	size := int(binary.LittleEndian.Uint32(data[0:]))
	hashCount := int(data[4])
	bits := data[5:]
	if size == 0 || hashCount == 0 || len(bits) != (size+7)/8 {
		return nil, fmt.Errorf("%w: bloom filter header size=%d hashes=%d bytes=%d", ErrCorrupt, size, hashCount, len(bits))
	}
	return &BloomFilter{
		bits:      bits,
		size:      size,
		hashCount: hashCount,
	}, nil
}
