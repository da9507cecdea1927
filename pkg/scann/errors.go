package scann

import (
	"errors"
	"fmt"

	"github.com/dd0wney/scann-ondevice/pkg/sstable"
)

// Kind classifies an error the way callers are expected to react to it
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidArgument marks malformed caller input
	KindInvalidArgument
	// KindNotFound marks a key missing from an opened index
	KindNotFound
	// KindUnimplemented marks a feature the table codec or searcher does not support
	KindUnimplemented
	// KindInternal marks codec failures not otherwise classified, including corrupt input
	KindInternal
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid argument"
	case KindNotFound:
		return "not found"
	case KindUnimplemented:
		return "unimplemented"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Sentinel errors, one per kind. Every *Error matches the sentinel of its kind
// under errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrUnimplemented   = errors.New("unimplemented")
	ErrInternal        = errors.New("internal error")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidArgument:
		return ErrInvalidArgument
	case KindNotFound:
		return ErrNotFound
	case KindUnimplemented:
		return ErrUnimplemented
	case KindInternal:
		return ErrInternal
	default:
		return nil
	}
}

// Error provides structured error information for index operations.
type Error struct {
	Op    string // Operation that failed (e.g., "build", "get_partition")
	Kind  Kind   // Error classification
	Key   string // Table key involved, if any
	Msg   string // Human-readable description
	Cause error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Key != "" {
		msg = fmt.Sprintf("%s (key %s)", msg, e.Key)
	}
	if e.Cause != nil {
		return fmt.Sprintf("scann %s: %s: %v", e.Op, msg, e.Cause)
	}
	return fmt.Sprintf("scann %s: %s", e.Op, msg)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is the sentinel for this error's kind.
// Matches against the cause are handled by errors.Is through Unwrap.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	return target == e.Kind.sentinel()
}

// ErrorBuilder provides a fluent interface for building Errors.
type ErrorBuilder struct {
	err Error
}

// NewError creates a new error builder for the given operation.
func NewError(op string) *ErrorBuilder {
	return &ErrorBuilder{err: Error{Op: op, Kind: KindInternal}}
}

// InvalidArgument sets the kind to KindInvalidArgument.
func (b *ErrorBuilder) InvalidArgument() *ErrorBuilder {
	b.err.Kind = KindInvalidArgument
	return b
}

// NotFound sets the kind to KindNotFound.
func (b *ErrorBuilder) NotFound() *ErrorBuilder {
	b.err.Kind = KindNotFound
	return b
}

// Unimplemented sets the kind to KindUnimplemented.
func (b *ErrorBuilder) Unimplemented() *ErrorBuilder {
	b.err.Kind = KindUnimplemented
	return b
}

// Key records the table key involved.
func (b *ErrorBuilder) Key(key string) *ErrorBuilder {
	b.err.Key = key
	return b
}

// Msgf sets the human-readable message.
func (b *ErrorBuilder) Msgf(format string, args ...any) *ErrorBuilder {
	b.err.Msg = fmt.Sprintf(format, args...)
	return b
}

// Cause sets the underlying error cause.
func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.err.Cause = err
	return b
}

// Err returns the error as an error interface.
func (b *ErrorBuilder) Err() error {
	e := b.err
	return &e
}

// fromTableError classifies a table codec error. KeyOrder violations are
// argument errors, a missing key is NotFound, unsupported formats are
// Unimplemented, and everything else (I/O, corruption, checksums) is Internal.
func fromTableError(op, key, msg string, err error) error {
	b := NewError(op).Key(key).Cause(err)
	if msg != "" {
		b.Msgf("%s", msg)
	}
	switch {
	case errors.Is(err, sstable.ErrKeyOrder):
		b.InvalidArgument()
	case errors.Is(err, sstable.ErrNotFound):
		b.NotFound()
	case errors.Is(err, sstable.ErrUnsupported):
		b.Unimplemented()
	}
	return b.Err()
}

// KindOf returns the kind of err. Errors not produced by this package are
// classified by the sentinels they wrap, falling back to KindInternal.
// KindOf(nil) is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrUnimplemented):
		return KindUnimplemented
	default:
		return KindInternal
	}
}

// IsInvalidArgument returns true if err is an invalid argument error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsNotFound returns true if err is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnimplemented returns true if err is an unimplemented error.
func IsUnimplemented(err error) bool {
	return errors.Is(err, ErrUnimplemented)
}

// IsInternal returns true if err is an internal error.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}
