package sstable

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// byteSource is implemented by in-memory inputs whose full contents can be
// sliced directly, avoiding a copy per block read.
type byteSource interface {
	Bytes() []byte
}

// Reader provides point lookups and iteration over a finished table.
// The underlying input must stay unchanged for the lifetime of the Reader.
// A Reader is safe for concurrent use.
type Reader struct {
	r      io.ReaderAt
	data   []byte // non-nil when r exposes its contents directly
	size   int64
	footer footer
	index  []indexEntry
	bloom  *BloomFilter
	cache  *BlockCache
}

// OpenBytes opens a table held entirely in memory. The slice is not copied.
func OpenBytes(data []byte, opts Options) (*Reader, error) {
	return open(bytes.NewReader(data), int64(len(data)), opts, data)
}

// Open opens a table of the given size read through r
func Open(r io.ReaderAt, size int64, opts Options) (*Reader, error) {
	var data []byte
	if src, ok := r.(byteSource); ok {
		data = src.Bytes()
	}
	return open(r, size, opts, data)
}

func open(r io.ReaderAt, size int64, opts Options, data []byte) (*Reader, error) {
	if data != nil && int64(len(data)) < size {
		return nil, fmt.Errorf("%w: input holds %d bytes, table size is %d", ErrCorrupt, len(data), size)
	}
	sst := &Reader{r: r, data: data, size: size}

	if size < FooterSize {
		return nil, fmt.Errorf("%w: table is %d bytes, shorter than footer", ErrCorrupt, size)
	}
	footerBuf, err := sst.readRaw(uint64(size-FooterSize), FooterSize)
	if err != nil {
		return nil, err
	}
	sst.footer, err = decodeFooter(footerBuf)
	if err != nil {
		return nil, err
	}

	// Read index
	indexBlock, err := sst.readBlock(sst.footer.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to read index block: %w", err)
	}
	sst.index, err = decodeIndexBlock(indexBlock)
	if err != nil {
		return nil, err
	}

	// Read Bloom filter
	if sst.footer.Filter.Size > 0 {
		filterBlock, err := sst.readBlock(sst.footer.Filter)
		if err != nil {
			return nil, fmt.Errorf("failed to read filter block: %w", err)
		}
		sst.bloom, err = UnmarshalBloomFilter(filterBlock)
		if err != nil {
			return nil, err
		}
	}

	if opts.BlockCacheSize > 0 {
		sst.cache, err = NewBlockCache(opts.BlockCacheSize)
		if err != nil {
			return nil, err
		}
	}

	return sst, nil
}

// readRaw returns n bytes at off, aliasing the input when possible
func (sst *Reader) readRaw(off, n uint64) ([]byte, error) {
	end := off + n
	if end < off || end > uint64(sst.size) {
		return nil, fmt.Errorf("%w: read [%d, %d) beyond table size %d", ErrCorrupt, off, end, sst.size)
	}
	if sst.data != nil {
		return sst.data[off:end], nil
	}
	buf := make([]byte, n)
	if _, err := sst.r.ReadAt(buf, int64(off)); err != nil {
		return nil, fmt.Errorf("%w: read at %d: %v", ErrCorrupt, off, err)
	}
	return buf, nil
}

func (sst *Reader) readBlock(h blockHandle) ([]byte, error) {
	limit := uint64(sst.size) - FooterSize
	if h.Size > limit || h.Offset > limit-h.Size || limit-h.Size-h.Offset < blockTrailerSize {
		return nil, fmt.Errorf("%w: block handle [%d+%d] out of range", ErrCorrupt, h.Offset, h.Size)
	}
	stored, err := sst.readRaw(h.Offset, h.Size+blockTrailerSize)
	if err != nil {
		return nil, err
	}
	return decodeBlock(stored)
}

// dataBlock returns the decoded i-th data block, going through the cache
func (sst *Reader) dataBlock(i int) ([]byte, error) {
	h := sst.index[i].Handle
	if sst.cache != nil {
		if block, ok := sst.cache.Get(h.Offset); ok {
			return block, nil
		}
	}
	block, err := sst.readBlock(h)
	if err != nil {
		return nil, err
	}
	if sst.cache != nil {
		sst.cache.Put(h.Offset, block)
	}
	return block, nil
}

// findBlock returns the first data block whose last key is >= key
func (sst *Reader) findBlock(key []byte) int {
	return sort.Search(len(sst.index), func(i int) bool {
		return bytes.Compare(sst.index[i].LastKey, key) >= 0
	})
}

// Get retrieves the value stored under key. The returned slice must not be
// modified; it may alias the table input or a cached block.
func (sst *Reader) Get(key []byte) ([]byte, error) {
	// Check Bloom filter first - fast negative lookup
	if sst.bloom != nil && !sst.bloom.MayContain(key) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	idx := sst.findBlock(key)
	if idx == len(sst.index) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
	}

	block, err := sst.dataBlock(idx)
	if err != nil {
		return nil, err
	}

	for pos := 0; pos < len(block); {
		k, v, next, err := decodeEntry(block, pos)
		if err != nil {
			return nil, err
		}
		cmp := bytes.Compare(k, key)
		if cmp == 0 {
			return v, nil
		}
		if cmp > 0 {
			break
		}
		pos = next
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, key)
}

// NumBlocks returns the number of data blocks in the table
func (sst *Reader) NumBlocks() int {
	return len(sst.index)
}

// Size returns the table size in bytes
func (sst *Reader) Size() int64 {
	return sst.size
}

// CacheStats returns block cache statistics; zero when the cache is disabled
func (sst *Reader) CacheStats() CacheStats {
	if sst.cache == nil {
		return CacheStats{}
	}
	return sst.cache.Stats()
}
