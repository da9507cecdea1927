// Package memfile adapts caller-owned byte buffers to the file interfaces of
// the table codec, so an index can be built and read without a filesystem.
package memfile

import (
	"errors"
	"io"
)

// ErrNilBuffer is returned by Create when no destination buffer is given
var ErrNilBuffer = errors.New("memfile: buffer cannot be nil")

// WritableFile appends everything written to it into a borrowed buffer.
// The buffer stays owned by the caller, who must keep it alive and must not
// touch it while the file is in use. A WritableFile has a single writer.
type WritableFile struct {
	buf *[]byte
}

// Create returns a WritableFile appending into *buf
func Create(buf *[]byte) (*WritableFile, error) {
	if buf == nil {
		return nil, ErrNilBuffer
	}
	return &WritableFile{buf: buf}, nil
}

// Append appends data to the buffer. It never fails.
func (f *WritableFile) Append(data []byte) error {
	*f.buf = append(*f.buf, data...)
	return nil
}

// Len returns the number of bytes in the buffer
func (f *WritableFile) Len() int {
	return len(*f.buf)
}

// Close is a no-op; the buffer is not released.
func (f *WritableFile) Close() error { return nil }

// Flush is a no-op.
func (f *WritableFile) Flush() error { return nil }

// Sync is a no-op.
func (f *WritableFile) Sync() error { return nil }

// ReaderAt serves random reads from an in-memory buffer without copying it.
type ReaderAt struct {
	data []byte
}

// NewReaderAt wraps data; the slice is borrowed, not copied.
func NewReaderAt(data []byte) *ReaderAt {
	return &ReaderAt{data: data}
}

// ReadAt implements io.ReaderAt
func (r *ReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("memfile: negative offset")
	}
	if off >= int64(len(r.data)) {
		return 0, io.EOF
	}
	n := copy(p, r.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Bytes returns the wrapped buffer
func (r *ReaderAt) Bytes() []byte {
	return r.data
}

// Size returns the buffer length
func (r *ReaderAt) Size() int64 {
	return int64(len(r.data))
}
