package types

import (
	"errors"
	"fmt"
	"io/fs"
)

// Error kinds. Every failure returned by the executor and undo engine wraps
// exactly one of these, so callers can branch with errors.Is.
var (
	// ErrValidation marks a malformed rule, template, or request.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing source path or an unknown operation id.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a destination that already exists.
	ErrConflict = errors.New("destination exists")

	// ErrCrossDevice marks a rename across filesystems. It is recovered
	// internally by copying and never reaches callers of the executor.
	ErrCrossDevice = errors.New("cross-device link")

	// ErrIO marks any other filesystem failure (permissions, disk full).
	ErrIO = errors.New("i/o error")

	// ErrAlreadyUndone is returned when undoing a record a second time.
	ErrAlreadyUndone = errors.New("operation already undone")

	// ErrUnrecoverable is returned when an operation cannot be reversed.
	ErrUnrecoverable = errors.New("operation cannot be undone")
)

// OpError is the structured failure of a single filesystem operation.
type OpError struct {
	// Op is the operation name ("move", "copy", "undo", ...).
	Op string

	// Path is the path the failure relates to.
	Path string

	// Kind is one of the Err* sentinels above.
	Kind error

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Kind)
	if e.Err != nil && !errors.Is(e.Err, e.Kind) {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewOpError builds an OpError, classifying err when kind is nil.
func NewOpError(op, path string, kind, err error) *OpError {
	if kind == nil {
		kind = Classify(err)
	}
	return &OpError{Op: op, Path: path, Kind: kind, Err: err}
}

// Classify maps a raw filesystem error onto an error kind.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation):
		return ErrValidation
	case errors.Is(err, ErrConflict), errors.Is(err, fs.ErrExist):
		return ErrConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, ErrCrossDevice):
		return ErrCrossDevice
	case errors.Is(err, ErrAlreadyUndone):
		return ErrAlreadyUndone
	case errors.Is(err, ErrUnrecoverable):
		return ErrUnrecoverable
	default:
		return ErrIO
	}
}
