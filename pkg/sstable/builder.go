package sstable

import (
	"bytes"
	"fmt"
)

// Builder writes a table into a WritableFile. Keys must be added in strictly
// ascending byte order. A Builder is not safe for concurrent use.
type Builder struct {
	file WritableFile
	opts Options

	offset     uint64
	block      []byte
	lastKey    []byte
	index      []indexEntry
	hashes     []bloomHash
	numEntries int

	finished bool
	err      error
}

// NewBuilder creates a builder that appends the table to file
func NewBuilder(file WritableFile, opts Options) *Builder {
	if opts.BlockSize <= 0 {
		opts.BlockSize = DefaultOptions().BlockSize
	}
	return &Builder{
		file:  file,
		opts:  opts,
		block: make([]byte, 0, opts.BlockSize+opts.BlockSize/4),
		index: make([]indexEntry, 0),
	}
}

// Add appends a key/value pair. key must sort strictly after every key
// added before it.
func (b *Builder) Add(key, value []byte) error {
	if b.finished {
		return ErrFinished
	}
	if b.err != nil {
		return b.err
	}
	if b.numEntries > 0 && bytes.Compare(key, b.lastKey) <= 0 {
		return fmt.Errorf("%w: %q added after %q", ErrKeyOrder, key, b.lastKey)
	}

	b.block = appendEntry(b.block, key, value)
	b.lastKey = append(b.lastKey[:0], key...)
	if b.opts.BloomBitsPerKey > 0 {
		b.hashes = append(b.hashes, hashKey(key))
	}
	b.numEntries++

	if len(b.block) >= b.opts.BlockSize {
		if err := b.flushBlock(); err != nil {
			b.err = err
			return err
		}
	}
	return nil
}

// flushBlock writes the pending data block and records it in the index
func (b *Builder) flushBlock() error {
	if len(b.block) == 0 {
		return nil
	}
	handle, err := b.writeBlock(b.block, b.opts.Compression)
	if err != nil {
		return err
	}
	b.index = append(b.index, indexEntry{
		LastKey: bytes.Clone(b.lastKey),
		Handle:  handle,
	})
	b.block = b.block[:0]
	return nil
}

func (b *Builder) writeBlock(raw []byte, c Compression) (blockHandle, error) {
	payload, typ := compressBlock(raw, c)
	handle := blockHandle{Offset: b.offset, Size: uint64(len(payload))}

	if err := b.file.Append(payload); err != nil {
		return blockHandle{}, fmt.Errorf("failed to write block: %w", err)
	}
	if err := b.file.Append(blockTrailer(payload, typ)); err != nil {
		return blockHandle{}, fmt.Errorf("failed to write block trailer: %w", err)
	}

	// Check for offset overflow
	newOffset := b.offset + uint64(len(payload)) + blockTrailerSize
	if newOffset < b.offset {
		return blockHandle{}, fmt.Errorf("table offset overflow: file too large")
	}
	b.offset = newOffset
	return handle, nil
}

// Finish flushes the last data block and writes the filter, index and footer.
// The builder cannot be used afterwards.
func (b *Builder) Finish() error {
	if b.finished {
		return ErrFinished
	}
	if b.err != nil {
		return b.err
	}
	b.finished = true

	if err := b.flushBlock(); err != nil {
		b.err = err
		return err
	}

	var ftr footer
	ftr.Magic = TableMagic
	ftr.Version = TableVersion

	// Write Bloom filter
	if b.opts.BloomBitsPerKey > 0 && b.numEntries > 0 {
		bloom := NewBloomFilter(b.numEntries, b.opts.BloomBitsPerKey)
		for _, h := range b.hashes {
			bloom.addHash(h)
		}
		handle, err := b.writeBlock(bloom.MarshalBinary(), NoCompression)
		if err != nil {
			b.err = err
			return err
		}
		ftr.Filter = handle
	}

	// Write index
	indexBlock := make([]byte, 0)
	for _, e := range b.index {
		indexBlock = appendIndexEntry(indexBlock, e)
	}
	handle, err := b.writeBlock(indexBlock, NoCompression)
	if err != nil {
		b.err = err
		return err
	}
	ftr.Index = handle

	if err := b.file.Append(ftr.encode()); err != nil {
		b.err = fmt.Errorf("failed to write footer: %w", err)
		return b.err
	}
	b.offset += FooterSize

	if err := b.file.Flush(); err != nil {
		b.err = fmt.Errorf("failed to flush table: %w", err)
		return b.err
	}
	return nil
}

// Abandon marks the builder finished without writing the remaining blocks.
// Whatever was already appended to the file must be discarded by the caller.
func (b *Builder) Abandon() {
	b.finished = true
}

// NumEntries returns the number of entries added so far
func (b *Builder) NumEntries() int {
	return b.numEntries
}

// FileSize returns the number of bytes written to the file so far
func (b *Builder) FileSize() uint64 {
	return b.offset
}
