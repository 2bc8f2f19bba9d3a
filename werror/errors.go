// Package werror defines the module's error kinds: concrete types the rest
// of the module wraps underlying causes in with github.com/pkg/errors, so
// that callers can classify a failure with errors.As while still getting a
// wrapped cause and (via "%+v") a stack trace.
package werror

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError reports invalid schema, unknown column, wrong arity,
// oversize row, out-of-range numeric values, a malformed index expression,
// or an attempt to modify a non-BUILDING table.
type ValidationError struct {
	Msg   string
	Cause error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("validation error: %s", e.Msg)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// Validation wraps cause (which may be nil) as a ValidationError.
func Validation(cause error, format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...), Cause: wrapCause(cause)}
}

// NotFoundError reports a row id out of range, a missing key, a missing
// index, or a missing table.
type NotFoundError struct {
	Msg   string
	Cause error
}

func (e *NotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("not found: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("not found: %s", e.Msg)
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

// NotFound wraps cause (which may be nil) as a NotFoundError.
func NotFound(cause error, format string, args ...interface{}) error {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...), Cause: wrapCause(cause)}
}

// IOError reports any failure from the underlying store or filesystem.
type IOError struct {
	Msg   string
	Cause error
}

func (e *IOError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("io error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("io error: %s", e.Msg)
}

func (e *IOError) Unwrap() error { return e.Cause }

// IO wraps cause as an IOError.
func IO(cause error, format string, args ...interface{}) error {
	return &IOError{Msg: fmt.Sprintf(format, args...), Cause: wrapCause(cause)}
}

// FormatError reports malformed schema XML, an unknown element type string,
// or a missing/unsupported schema version.
type FormatError struct {
	Msg   string
	Cause error
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("format error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("format error: %s", e.Msg)
}

func (e *FormatError) Unwrap() error { return e.Cause }

// Format wraps cause as a FormatError.
func Format(cause error, format string, args ...interface{}) error {
	return &FormatError{Msg: fmt.Sprintf(format, args...), Cause: wrapCause(cause)}
}

// StateError reports an operation on a closed handle, an AddColumn call
// after the first AddRow, or opening for write over an existing directory.
type StateError struct {
	Msg   string
	Cause error
}

func (e *StateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("state error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("state error: %s", e.Msg)
}

func (e *StateError) Unwrap() error { return e.Cause }

// State wraps cause as a StateError.
func State(cause error, format string, args ...interface{}) error {
	return &StateError{Msg: fmt.Sprintf(format, args...), Cause: wrapCause(cause)}
}

// wrapCause attaches a stack trace to non-nil causes that don't already
// carry one, via github.com/pkg/errors, without double-wrapping.
func wrapCause(cause error) error {
	if cause == nil {
		return nil
	}
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if _, ok := cause.(stackTracer); ok {
		return cause
	}
	return errors.WithStack(cause)
}
