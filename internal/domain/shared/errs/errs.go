// Package errs defines the error kinds shared by every layer of the engine.
//
// Domain packages declare precise sentinels with the constructors below, so a
// caller can match either the exact condition or only its kind:
//
//	errors.Is(err, booking.ErrNotPending) // exact
//	errors.Is(err, errs.ErrValidation)    // kind
package errs

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrUnavailable = errors.New("store unavailable")
)

var kinds = []error{ErrValidation, ErrNotFound, ErrConflict, ErrForbidden, ErrUnavailable}

// Error is a message tagged with one of the kinds above.
type Error struct {
	kind error
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Is reports kind membership; identity comparison is handled by errors.Is itself.
func (e *Error) Is(target error) bool { return target == e.kind }

// Kind returns the sentinel kind of the error.
func (e *Error) Kind() error { return e.kind }

func Validation(msg string) *Error  { return &Error{kind: ErrValidation, msg: msg} }
func NotFound(msg string) *Error    { return &Error{kind: ErrNotFound, msg: msg} }
func Conflict(msg string) *Error    { return &Error{kind: ErrConflict, msg: msg} }
func Forbidden(msg string) *Error   { return &Error{kind: ErrForbidden, msg: msg} }
func Unavailable(msg string) *Error { return &Error{kind: ErrUnavailable, msg: msg} }

// New tags msg with kind.
func New(kind error, msg string) *Error { return &Error{kind: kind, msg: msg} }

// KindByName maps the text of a kind sentinel back to the sentinel.
func KindByName(name string) error {
	for _, kind := range kinds {
		if kind.Error() == name {
			return kind
		}
	}
	return nil
}

// Validationf formats a validation message.
func Validationf(format string, args ...any) *Error {
	return Validation(fmt.Sprintf(format, args...))
}

// Wrap keeps cause in the chain while tagging it with kind.
func Wrap(kind error, msg string, cause error) error {
	return fmt.Errorf("%w: %w", &Error{kind: kind, msg: msg}, cause)
}

// KindOf returns the first kind found in err's chain, or nil for untyped errors.
func KindOf(err error) error {
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// IsNotFound is shorthand for errors.Is(err, ErrNotFound).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Retryable reports whether a caller may safely retry the operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// FromContext converts deadline and cancellation errors raised by a store call
// into the retryable kind; other errors are returned unchanged.
func FromContext(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrUnavailable, "store call timed out", err)
	}
	return err
}
