package sstable

import (
	"encoding/binary"
	"fmt"
)

// Table format:
//   [Data Block 0] ... [Data Block n-1]
//   [Filter Block: bloom filter over every key]
//   [Index Block: last key + handle of every data block]
//   [Footer: filter handle(16) | index handle(16) | magic(4) | version(4)]
//
// Every block is followed by a trailer: compression type(1) | crc32(4).
// The CRC covers the stored payload and the type byte.

const (
	TableMagic   = 0x53535442 // "SSTB"
	TableVersion = 2

	// FooterSize is the fixed size of the table footer in bytes.
	FooterSize = 40

	blockTrailerSize = 5
)

// Compression selects the per-block compression codec.
type Compression byte

const (
	NoCompression     Compression = 0
	SnappyCompression Compression = 1
)

// String returns the codec name
func (c Compression) String() string {
	switch c {
	case NoCompression:
		return "none"
	case SnappyCompression:
		return "snappy"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

// Options configures table building and reading
type Options struct {
	// Compression applied to data blocks. Filter and index blocks are never
	// compressed.
	Compression Compression

	// BlockSize is the approximate raw size of a data block before it is cut.
	BlockSize int

	// BloomBitsPerKey sizes the bloom filter. 0 disables the filter.
	BloomBitsPerKey int

	// BlockCacheSize is the number of decoded data blocks a Reader keeps in
	// memory. 0 disables the cache.
	BlockCacheSize int
}

// DefaultOptions returns default table configuration
func DefaultOptions() Options {
	return Options{
		Compression:     SnappyCompression,
		BlockSize:       4 * 1024, // 4KB
		BloomBitsPerKey: 10,
		BlockCacheSize:  0,
	}
}

// blockHandle locates a block (without its trailer) inside the table
type blockHandle struct {
	Offset uint64
	Size   uint64
}

// indexEntry maps the last key of a data block to that block
type indexEntry struct {
	LastKey []byte
	Handle  blockHandle
}

type footer struct {
	Filter  blockHandle
	Index   blockHandle
	Magic   uint32
	Version uint32
}

func (f footer) encode() []byte {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint64(buf[0:], f.Filter.Offset)
	binary.LittleEndian.PutUint64(buf[8:], f.Filter.Size)
	binary.LittleEndian.PutUint64(buf[16:], f.Index.Offset)
	binary.LittleEndian.PutUint64(buf[24:], f.Index.Size)
	binary.LittleEndian.PutUint32(buf[32:], f.Magic)
	binary.LittleEndian.PutUint32(buf[36:], f.Version)
	return buf
}

func decodeFooter(buf []byte) (footer, error) {
	if len(buf) != FooterSize {
		return footer{}, fmt.Errorf("%w: footer is %d bytes, want %d", ErrCorrupt, len(buf), FooterSize)
	}
	f := footer{
		Filter: blockHandle{
			Offset: binary.LittleEndian.Uint64(buf[0:]),
			Size:   binary.LittleEndian.Uint64(buf[8:]),
		},
		Index: blockHandle{
			Offset: binary.LittleEndian.Uint64(buf[16:]),
			Size:   binary.LittleEndian.Uint64(buf[24:]),
		},
		Magic:   binary.LittleEndian.Uint32(buf[32:]),
		Version: binary.LittleEndian.Uint32(buf[36:]),
	}
	if f.Magic != TableMagic {
		return footer{}, fmt.Errorf("%w: invalid table magic: %x", ErrCorrupt, f.Magic)
	}
	if f.Version != TableVersion {
		return footer{}, fmt.Errorf("%w: table version %d", ErrUnsupported, f.Version)
	}
	return f, nil
}

// WritableFile is the sink a Builder writes the table into. Implementations
// may target a filesystem file or an in-memory buffer.
type WritableFile interface {
	Append(data []byte) error
	Flush() error
	Sync() error
	Close() error
}
