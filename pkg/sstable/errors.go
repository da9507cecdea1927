package sstable

import "errors"

// Sentinel errors returned by the table builder and reader. Callers match them
// with errors.Is; the returned errors usually wrap one of these with context.
var (
	ErrNotFound    = errors.New("sstable: key not found")
	ErrCorrupt     = errors.New("sstable: corrupt table")
	ErrChecksum    = errors.New("sstable: block checksum mismatch")
	ErrUnsupported = errors.New("sstable: unsupported table feature")
	ErrKeyOrder    = errors.New("sstable: keys must be added in strictly ascending order")
	ErrFinished    = errors.New("sstable: builder already finished")
)
