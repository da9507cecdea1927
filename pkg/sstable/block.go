package sstable

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/golang/snappy"
)

// appendEntry encodes one entry into a data block.
// Format: keyLen(uvarint) | valueLen(uvarint) | key | value
func appendEntry(dst, key, value []byte) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(key)))
	dst = binary.AppendUvarint(dst, uint64(len(value)))
	dst = append(dst, key...)
	return append(dst, value...)
}

// decodeEntry decodes the entry starting at pos. The returned key and value
// alias block.
func decodeEntry(block []byte, pos int) (key, value []byte, next int, err error) {
	keyLen, n := binary.Uvarint(block[pos:])
	if n <= 0 {
		return nil, nil, 0, fmt.Errorf("%w: bad key length at block offset %d", ErrCorrupt, pos)
	}
	pos += n

	valueLen, n := binary.Uvarint(block[pos:])
	if n <= 0 {
		return nil, nil, 0, fmt.Errorf("%w: bad value length at block offset %d", ErrCorrupt, pos)
	}
	pos += n

	// Lengths are checked one at a time so their sum cannot wrap
	remaining := uint64(len(block) - pos)
	if keyLen > remaining || valueLen > remaining-keyLen {
		return nil, nil, 0, fmt.Errorf("%w: entry at block offset %d overruns block (key %d, value %d, %d bytes left)",
			ErrCorrupt, pos, keyLen, valueLen, remaining)
	}
	keyEnd := pos + int(keyLen)
	end := keyEnd + int(valueLen)
	return block[pos:keyEnd], block[keyEnd:end], end, nil
}

// appendIndexEntry encodes one index block entry.
// Format: keyLen(uvarint) | key | offset(uvarint) | size(uvarint)
func appendIndexEntry(dst []byte, e indexEntry) []byte {
	dst = binary.AppendUvarint(dst, uint64(len(e.LastKey)))
	dst = append(dst, e.LastKey...)
	dst = binary.AppendUvarint(dst, e.Handle.Offset)
	return binary.AppendUvarint(dst, e.Handle.Size)
}

func decodeIndexBlock(block []byte) ([]indexEntry, error) {
	index := make([]indexEntry, 0)
	pos := 0
	for pos < len(block) {
		keyLen, n := binary.Uvarint(block[pos:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad index key length", ErrCorrupt)
		}
		pos += n
		if uint64(len(block)-pos) < keyLen {
			return nil, fmt.Errorf("%w: index key overruns block", ErrCorrupt)
		}
		key := block[pos : pos+int(keyLen)]
		pos += int(keyLen)

		offset, n := binary.Uvarint(block[pos:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad index block offset", ErrCorrupt)
		}
		pos += n

		size, n := binary.Uvarint(block[pos:])
		if n <= 0 {
			return nil, fmt.Errorf("%w: bad index block size", ErrCorrupt)
		}
		pos += n

		index = append(index, indexEntry{
			LastKey: key,
			Handle:  blockHandle{Offset: offset, Size: size},
		})
	}
	return index, nil
}

// blockChecksum covers the stored payload and the compression type byte
func blockChecksum(payload []byte, typ Compression) uint32 {
	crc := crc32.ChecksumIEEE(payload)
	return crc32.Update(crc, crc32.IEEETable, []byte{byte(typ)})
}

// compressBlock returns the payload to store and the codec actually used.
// Snappy output is kept only when it saves at least 12.5% of the raw size.
func compressBlock(raw []byte, c Compression) ([]byte, Compression) {
	if c != SnappyCompression {
		return raw, NoCompression
	}
	compressed := snappy.Encode(nil, raw)
	if len(compressed) < len(raw)-len(raw)/8 {
		return compressed, SnappyCompression
	}
	return raw, NoCompression
}

func blockTrailer(payload []byte, typ Compression) []byte {
	trailer := make([]byte, blockTrailerSize)
	trailer[0] = byte(typ)
	binary.LittleEndian.PutUint32(trailer[1:], blockChecksum(payload, typ))
	return trailer
}

// decodeBlock verifies the trailer of a stored block (payload followed by
// trailer) and returns the uncompressed contents.
func decodeBlock(stored []byte) ([]byte, error) {
	if len(stored) < blockTrailerSize {
		return nil, fmt.Errorf("%w: block shorter than trailer", ErrCorrupt)
	}
	payloadLen := len(stored) - blockTrailerSize
	payload := stored[:payloadLen]
	typ := Compression(stored[payloadLen])
	stored32 := binary.LittleEndian.Uint32(stored[payloadLen+1:])
	if calc := blockChecksum(payload, typ); calc != stored32 {
		return nil, fmt.Errorf("%w: stored %x, calculated %x", ErrChecksum, stored32, calc)
	}

	switch typ {
	case NoCompression:
		return payload, nil
	case SnappyCompression:
		decoded, err := snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to decompress block: %v", ErrCorrupt, err)
		}
		return decoded, nil
	default:
		return nil, fmt.Errorf("%w: compression type %d", ErrUnsupported, byte(typ))
	}
}
