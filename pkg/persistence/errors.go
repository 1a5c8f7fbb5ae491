package persistence

import (
	stderrors "errors"
	"fmt"
)

// ErrInvalidName is wrapped by errors for IDs and names that cannot be used
// as a single path segment.
var ErrInvalidName = stderrors.New("not a valid path segment")

// Kind classifies failures at the boundary of the store.
type Kind int

const (
	// KindFilesystem covers I/O failures unrelated to version control. These
	// are returned to the caller.
	KindFilesystem Kind = iota + 1
	// KindVersionControlUnavailable covers every git failure. The store logs
	// these and carries on without an audit trail.
	KindVersionControlUnavailable
	// KindMalformedRecord covers JSON files that cannot be decoded. The store
	// logs these and treats the file as absent.
	KindMalformedRecord
)

func (k Kind) String() string {
	switch k {
	case KindFilesystem:
		return "filesystem"
	case KindVersionControlUnavailable:
		return "version_control_unavailable"
	case KindMalformedRecord:
		return "malformed_record"
	default:
		return "unknown"
	}
}

// Error is the error type produced by the store.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err, or any error it wraps, is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Kind == k
}

func fsError(op, path string, err error) error {
	return &Error{Kind: KindFilesystem, Op: op, Path: path, Err: err}
}

func malformed(path string, err error) error {
	return &Error{Kind: KindMalformedRecord, Op: "decode", Path: path, Err: err}
}

func vcsError(op string, err error) error {
	return &Error{Kind: KindVersionControlUnavailable, Op: op, Err: err}
}
