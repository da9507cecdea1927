package sstable

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"testing"

	"github.com/dd0wney/scann-ondevice/pkg/memfile"
)

// buildTable builds a table from already-sorted entries
func buildTable(t *testing.T, opts Options, keys []string, values [][]byte) []byte {
	t.Helper()

	var buf []byte
	file, err := memfile.Create(&buf)
	if err != nil {
		t.Fatalf("memfile.Create failed: %v", err)
	}
	b := NewBuilder(file, opts)
	for i, k := range keys {
		if err := b.Add([]byte(k), values[i]); err != nil {
			t.Fatalf("Add(%q) failed: %v", k, err)
		}
	}
	if err := b.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if b.FileSize() != uint64(len(buf)) {
		t.Errorf("FileSize %d does not match buffer length %d", b.FileSize(), len(buf))
	}
	return buf
}

func sequentialEntries(n, valueSize int) ([]string, [][]byte) {
	keys := make([]string, n)
	values := make([][]byte, n)
	for i := 0; i < n; i++ {
		keys[i] = fmt.Sprintf("key-%06d", i)
		v := bytes.Repeat([]byte{byte(i)}, valueSize)
		binary.LittleEndian.PutUint32(v, uint32(i))
		values[i] = v
	}
	return keys, values
}

// TestTable_GetAllCodecs tests point lookups with and without compression
func TestTable_GetAllCodecs(t *testing.T) {
	for _, c := range []Compression{NoCompression, SnappyCompression} {
		t.Run(c.String(), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Compression = c
			opts.BlockSize = 256

			keys, values := sequentialEntries(500, 64)
			data := buildTable(t, opts, keys, values)

			sst, err := OpenBytes(data, opts)
			if err != nil {
				t.Fatalf("OpenBytes failed: %v", err)
			}
			if sst.NumBlocks() < 2 {
				t.Errorf("Expected multiple data blocks, got %d", sst.NumBlocks())
			}

			for i, k := range keys {
				v, err := sst.Get([]byte(k))
				if err != nil {
					t.Fatalf("Get(%q) failed: %v", k, err)
				}
				if !bytes.Equal(v, values[i]) {
					t.Fatalf("Get(%q): value mismatch", k)
				}
			}

			for _, missing := range []string{"a", "key-", "key-0000005", "key-000500", "zzz"} {
				if _, err := sst.Get([]byte(missing)); !errors.Is(err, ErrNotFound) {
					t.Errorf("Get(%q): expected ErrNotFound, got %v", missing, err)
				}
			}
		})
	}
}

// TestTable_SnappyShrinksCompressibleData tests that compression is applied
func TestTable_SnappyShrinksCompressibleData(t *testing.T) {
	keys, values := sequentialEntries(200, 512)

	plain := DefaultOptions()
	plain.Compression = NoCompression
	compressed := DefaultOptions()
	compressed.Compression = SnappyCompression

	plainData := buildTable(t, plain, keys, values)
	compressedData := buildTable(t, compressed, keys, values)

	if len(compressedData) >= len(plainData) {
		t.Errorf("Expected snappy table (%d bytes) to be smaller than plain table (%d bytes)",
			len(compressedData), len(plainData))
	}
}

// TestTable_ReaderAtPath tests opening through a plain io.ReaderAt
func TestTable_ReaderAtPath(t *testing.T) {
	opts := DefaultOptions()
	opts.BlockSize = 128
	keys, values := sequentialEntries(100, 16)
	data := buildTable(t, opts, keys, values)

	sst, err := Open(bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	v, err := sst.Get([]byte(keys[42]))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(v, values[42]) {
		t.Error("Value mismatch through ReaderAt path")
	}

	sst2, err := Open(memfile.NewReaderAt(data), int64(len(data)), opts)
	if err != nil {
		t.Fatalf("Open(memfile) failed: %v", err)
	}
	if _, err := sst2.Get([]byte(keys[99])); err != nil {
		t.Errorf("Get through memfile.ReaderAt failed: %v", err)
	}
}

// TestBuilder_RejectsOutOfOrderKeys tests the ascending key precondition
func TestBuilder_RejectsOutOfOrderKeys(t *testing.T) {
	var buf []byte
	file, _ := memfile.Create(&buf)
	b := NewBuilder(file, DefaultOptions())

	if err := b.Add([]byte("E_1"), []byte("a")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := b.Add([]byte("E_10"), []byte("b")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	// Numeric order, lexically out of order
	if err := b.Add([]byte("E_2"), nil); err != nil {
		t.Fatalf("Add(E_2) after E_10 should succeed lexically: %v", err)
	}
	if err := b.Add([]byte("E_11"), nil); !errors.Is(err, ErrKeyOrder) {
		t.Errorf("Expected ErrKeyOrder for E_11 after E_2, got %v", err)
	}
	if err := b.Add([]byte("E_2"), nil); !errors.Is(err, ErrKeyOrder) {
		t.Errorf("Expected ErrKeyOrder for duplicate key, got %v", err)
	}
}

// TestBuilder_FinishedBuilder tests that a finished builder refuses writes
func TestBuilder_FinishedBuilder(t *testing.T) {
	var buf []byte
	file, _ := memfile.Create(&buf)
	b := NewBuilder(file, DefaultOptions())
	_ = b.Add([]byte("k"), []byte("v"))

	if err := b.Finish(); err != nil {
		t.Fatalf("Finish failed: %v", err)
	}
	if err := b.Add([]byte("z"), nil); !errors.Is(err, ErrFinished) {
		t.Errorf("Expected ErrFinished from Add, got %v", err)
	}
	if err := b.Finish(); !errors.Is(err, ErrFinished) {
		t.Errorf("Expected ErrFinished from second Finish, got %v", err)
	}
	if b.NumEntries() != 1 {
		t.Errorf("Expected 1 entry, got %d", b.NumEntries())
	}
}

type failingFile struct {
	failAfter int
	appends   int
}

var errDiskFull = errors.New("disk full")

func (f *failingFile) Append(data []byte) error {
	f.appends++
	if f.appends > f.failAfter {
		return errDiskFull
	}
	return nil
}
func (f *failingFile) Flush() error { return nil }
func (f *failingFile) Sync() error  { return nil }
func (f *failingFile) Close() error { return nil }

// TestBuilder_PropagatesWriteErrors tests that sink failures surface from Finish
func TestBuilder_PropagatesWriteErrors(t *testing.T) {
	b := NewBuilder(&failingFile{failAfter: 1}, DefaultOptions())
	_ = b.Add([]byte("k"), []byte("v"))

	err := b.Finish()
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("Expected disk full error, got %v", err)
	}
	if err := b.Add([]byte("z"), nil); err == nil {
		t.Error("Expected builder to stay failed")
	}
}

// TestTable_Empty tests a table without entries
func TestTable_Empty(t *testing.T) {
	data := buildTable(t, DefaultOptions(), nil, nil)

	sst, err := OpenBytes(data, DefaultOptions())
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	if sst.NumBlocks() != 0 {
		t.Errorf("Expected 0 blocks, got %d", sst.NumBlocks())
	}
	if _, err := sst.Get([]byte("any")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	it := sst.NewIterator()
	it.First()
	if it.Valid() {
		t.Error("Iterator over empty table should not be valid")
	}
}

// TestTable_EmptyValues tests that zero-length values round trip
func TestTable_EmptyValues(t *testing.T) {
	data := buildTable(t, DefaultOptions(), []string{"A", "B"}, [][]byte{{}, []byte("x")})
	sst, err := OpenBytes(data, DefaultOptions())
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	v, err := sst.Get([]byte("A"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(v) != 0 {
		t.Errorf("Expected empty value, got %q", v)
	}
}

// TestTable_WithoutBloomFilter tests tables built with the filter disabled
func TestTable_WithoutBloomFilter(t *testing.T) {
	opts := DefaultOptions()
	opts.BloomBitsPerKey = 0
	keys, values := sequentialEntries(50, 8)
	data := buildTable(t, opts, keys, values)

	sst, err := OpenBytes(data, opts)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	if sst.bloom != nil {
		t.Error("Expected no bloom filter")
	}
	if _, err := sst.Get([]byte(keys[7])); err != nil {
		t.Errorf("Get failed: %v", err)
	}
	if _, err := sst.Get([]byte("nope")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestOpen_Corruption tests that damaged tables are rejected
func TestOpen_Corruption(t *testing.T) {
	keys, values := sequentialEntries(20, 8)
	opts := DefaultOptions()
	opts.Compression = NoCompression
	data := buildTable(t, opts, keys, values)

	t.Run("truncated", func(t *testing.T) {
		if _, err := OpenBytes(data[:FooterSize-1], opts); !errors.Is(err, ErrCorrupt) {
			t.Errorf("Expected ErrCorrupt, got %v", err)
		}
		if _, err := OpenBytes(data[len(data)/2:], opts); err == nil {
			t.Error("Expected error for table missing its head")
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-8] ^= 0xFF
		if _, err := OpenBytes(bad, opts); !errors.Is(err, ErrCorrupt) {
			t.Errorf("Expected ErrCorrupt, got %v", err)
		}
	})

	t.Run("unknown version", func(t *testing.T) {
		bad := bytes.Clone(data)
		binary.LittleEndian.PutUint32(bad[len(bad)-4:], TableVersion+1)
		if _, err := OpenBytes(bad, opts); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("data block checksum", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[3] ^= 0xFF // inside the first data block
		sst, err := OpenBytes(bad, opts)
		if err != nil {
			t.Fatalf("Open should succeed, data blocks are verified lazily: %v", err)
		}
		if _, err := sst.Get([]byte(keys[0])); !errors.Is(err, ErrChecksum) {
			t.Errorf("Expected ErrChecksum, got %v", err)
		}
	})

	t.Run("entry lengths overflow", func(t *testing.T) {
		// keyLen + valueLen wraps around uint64 while the block checksum stays valid
		raw := binary.AppendUvarint(nil, ^uint64(0))
		raw = binary.AppendUvarint(raw, 2)
		raw = append(raw, "abcdef"...)

		var buf []byte
		file, err := memfile.Create(&buf)
		if err != nil {
			t.Fatalf("memfile.Create failed: %v", err)
		}
		b := NewBuilder(file, Options{Compression: NoCompression, BlockSize: 4096})
		b.block = append(b.block, raw...)
		b.lastKey = []byte("zz")
		b.numEntries = 1
		if err := b.Finish(); err != nil {
			t.Fatalf("Finish failed: %v", err)
		}

		sst, err := OpenBytes(buf, DefaultOptions())
		if err != nil {
			t.Fatalf("OpenBytes failed: %v", err)
		}
		if _, err := sst.Get([]byte("a")); !errors.Is(err, ErrCorrupt) {
			t.Errorf("Get: expected ErrCorrupt, got %v", err)
		}
		it := sst.NewIterator()
		it.First()
		if it.Valid() || !errors.Is(it.Err(), ErrCorrupt) {
			t.Errorf("Iterator: expected ErrCorrupt, got valid=%v err=%v", it.Valid(), it.Err())
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := OpenBytes(bytes.Repeat([]byte{0xAB}, 200), opts); err == nil {
			t.Error("Expected error for garbage input")
		}
	})
}

// TestDecodeBlock_UnknownCompression tests the unsupported codec path
func TestDecodeBlock_UnknownCompression(t *testing.T) {
	payload := []byte("payload")
	stored := append(bytes.Clone(payload), blockTrailer(payload, Compression(7))...)

	if _, err := decodeBlock(stored); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Expected ErrUnsupported, got %v", err)
	}
}

// TestIterator_Scan tests full and seeked iteration across blocks
func TestIterator_Scan(t *testing.T) {
	opts := DefaultOptions()
	opts.BlockSize = 64
	keys, values := sequentialEntries(300, 10)
	data := buildTable(t, opts, keys, values)

	sst, err := OpenBytes(data, opts)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}

	it := sst.NewIterator()
	count := 0
	for it.First(); it.Valid(); it.Next() {
		if string(it.Key()) != keys[count] {
			t.Fatalf("Entry %d: expected key %s, got %s", count, keys[count], it.Key())
		}
		if !bytes.Equal(it.Value(), values[count]) {
			t.Fatalf("Entry %d: value mismatch", count)
		}
		count++
	}
	if err := it.Err(); err != nil {
		t.Fatalf("Iterator error: %v", err)
	}
	if count != len(keys) {
		t.Errorf("Expected %d entries, got %d", len(keys), count)
	}

	it.Seek([]byte("key-000150"))
	if !it.Valid() || string(it.Key()) != "key-000150" {
		t.Errorf("Seek to existing key landed on %q", it.Key())
	}

	it.Seek([]byte("key-0001505"))
	if !it.Valid() || string(it.Key()) != "key-000151" {
		t.Errorf("Seek between keys landed on %q", it.Key())
	}

	it.Seek([]byte("zzz"))
	if it.Valid() {
		t.Error("Seek past the end should invalidate the iterator")
	}
}

// TestReader_BlockCache tests that repeated lookups hit the cache
func TestReader_BlockCache(t *testing.T) {
	opts := DefaultOptions()
	opts.BlockSize = 128
	opts.BlockCacheSize = 4
	keys, values := sequentialEntries(100, 16)
	data := buildTable(t, opts, keys, values)

	sst, err := OpenBytes(data, opts)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := sst.Get([]byte(keys[10])); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}

	stats := sst.CacheStats()
	if stats.Misses != 1 || stats.Hits != 2 {
		t.Errorf("Expected 1 miss and 2 hits, got %+v", stats)
	}
	if stats.Blocks != 1 {
		t.Errorf("Expected 1 cached block, got %d", stats.Blocks)
	}
}

// TestReader_ConcurrentGets tests concurrent lookups on one reader
func TestReader_ConcurrentGets(t *testing.T) {
	opts := DefaultOptions()
	opts.BlockSize = 128
	opts.BlockCacheSize = 2
	keys, values := sequentialEntries(200, 16)
	data := buildTable(t, opts, keys, values)

	sst, err := OpenBytes(data, opts)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}

	errs := make(chan error, 8)
	for w := 0; w < 8; w++ {
		go func(w int) {
			for i := w; i < len(keys); i += 8 {
				v, err := sst.Get([]byte(keys[i]))
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(v, values[i]) {
					errs <- fmt.Errorf("value mismatch for %s", keys[i])
					return
				}
			}
			errs <- nil
		}(w)
	}
	for w := 0; w < 8; w++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

// TestTable_LargeValueSpansOneBlock tests values larger than the block size
func TestTable_LargeValueSpansOneBlock(t *testing.T) {
	opts := DefaultOptions()
	opts.BlockSize = 64
	big := bytes.Repeat([]byte("0123456789"), 10000)
	data := buildTable(t, opts, []string{"a", "b", "c"}, [][]byte{[]byte("x"), big, []byte("y")})

	sst, err := OpenBytes(data, opts)
	if err != nil {
		t.Fatalf("OpenBytes failed: %v", err)
	}
	v, err := sst.Get([]byte("b"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(v, big) {
		t.Error("Large value mismatch")
	}
}
