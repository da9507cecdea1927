package sstable

import "bytes"

// Iterator walks table entries in key order. Key and Value alias table data
// and are only valid until the next call that moves the iterator.
// An Iterator is not safe for concurrent use; create one per goroutine.
type Iterator struct {
	sst *Reader

	blockIdx int
	block    []byte
	pos      int

	key   []byte
	value []byte
	valid bool
	err   error
}

// NewIterator returns an unpositioned iterator. Call First or Seek before use.
func (sst *Reader) NewIterator() *Iterator {
	return &Iterator{sst: sst, blockIdx: -1}
}

// First positions the iterator at the first entry
func (it *Iterator) First() {
	it.loadBlock(0)
	it.next()
}

// Seek positions the iterator at the first entry with key >= target
func (it *Iterator) Seek(target []byte) {
	it.loadBlock(it.sst.findBlock(target))
	for it.next(); it.valid && bytes.Compare(it.key, target) < 0; {
		it.next()
	}
}

// Next advances to the following entry
func (it *Iterator) Next() {
	if !it.valid {
		return
	}
	it.next()
}

func (it *Iterator) loadBlock(i int) {
	it.blockIdx = i
	it.block = nil
	it.pos = 0
	it.valid = false
	if i < 0 || i >= len(it.sst.index) {
		return
	}
	block, err := it.sst.dataBlock(i)
	if err != nil {
		it.err = err
		return
	}
	it.block = block
}

func (it *Iterator) next() {
	for it.err == nil && it.block != nil && it.pos >= len(it.block) {
		it.loadBlock(it.blockIdx + 1)
	}
	if it.err != nil || it.block == nil {
		it.valid = false
		return
	}

	key, value, next, err := decodeEntry(it.block, it.pos)
	if err != nil {
		it.err = err
		it.valid = false
		return
	}
	it.key, it.value, it.pos = key, value, next
	it.valid = true
}

// Valid reports whether the iterator is positioned at an entry
func (it *Iterator) Valid() bool {
	return it.valid
}

// Key returns the current key
func (it *Iterator) Key() []byte {
	return it.key
}

// Value returns the current value
func (it *Iterator) Value() []byte {
	return it.value
}

// Err returns the first error encountered while iterating
func (it *Iterator) Err() error {
	return it.err
}
