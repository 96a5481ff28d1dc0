// Package apperrors defines the error kinds shared by the matching core and the
// layers wrapped around it. Every error returned by a service carries exactly one
// kind, testable with errors.Is.
package apperrors

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

var (
	ErrNotFound     = stderrors.New("not found")
	ErrInvalidState = stderrors.New("invalid state")
	ErrValidation   = stderrors.New("validation error")
	ErrTransient    = stderrors.New("transient failure")
	ErrConflict     = stderrors.New("conflict")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string {
	return e.msg + ": " + e.kind.Error()
}

func (e *kindError) Unwrap() error {
	return e.kind
}

func newKind(kind error, format string, args ...interface{}) error {
	return errors.WithStack(&kindError{kind: kind, msg: errors.Errorf(format, args...).Error()})
}

// NotFound reports an unknown id.
func NotFound(format string, args ...interface{}) error {
	return newKind(ErrNotFound, format, args...)
}

// InvalidState reports an operation that is not legal for the entity's current state.
func InvalidState(format string, args ...interface{}) error {
	return newKind(ErrInvalidState, format, args...)
}

// Validation reports malformed input.
func Validation(format string, args ...interface{}) error {
	return newKind(ErrValidation, format, args...)
}

// Conflict reports a uniqueness violation.
func Conflict(format string, args ...interface{}) error {
	return newKind(ErrConflict, format, args...)
}

// Transient wraps a delivery failure that may succeed on retry.
func Transient(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(&causeError{kind: ErrTransient, cause: err}, format, args...)
}

type causeError struct {
	kind  error
	cause error
}

func (e *causeError) Error() string {
	return e.cause.Error()
}

// Is lets the wrapped cause and the kind both match.
func (e *causeError) Is(target error) bool {
	return target == e.kind
}

func (e *causeError) Unwrap() error {
	return e.cause
}

func IsNotFound(err error) bool     { return stderrors.Is(err, ErrNotFound) }
func IsInvalidState(err error) bool { return stderrors.Is(err, ErrInvalidState) }
func IsValidation(err error) bool   { return stderrors.Is(err, ErrValidation) }
func IsTransient(err error) bool    { return stderrors.Is(err, ErrTransient) }
func IsConflict(err error) bool     { return stderrors.Is(err, ErrConflict) }
