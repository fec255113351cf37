// Package apperror defines the typed error taxonomy shared by the service
// and transport layers.
package apperror

import (
	"errors"
	"fmt"
)

// Class groups errors by how callers must react to them.
type Class int

const (
	// ClassInternal is anything unclassified.
	ClassInternal Class = iota
	// ClassValidation errors are deterministic and never retried.
	ClassValidation
	// ClassNotFound errors report a missing resource.
	ClassNotFound
	// ClassConflict errors are expected under concurrent load.
	ClassConflict
	// ClassTransient errors may succeed on retry.
	ClassTransient
	// ClassUnauthenticated errors report a missing or invalid identity.
	ClassUnauthenticated
	// ClassForbidden errors report an identity lacking permission.
	ClassForbidden
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassNotFound:
		return "not_found"
	case ClassConflict:
		return "conflict"
	case ClassTransient:
		return "transient"
	case ClassUnauthenticated:
		return "unauthenticated"
	case ClassForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is a classified application error. Two errors are equal under
// errors.Is when their codes match, so sentinels can be wrapped with a
// cause and still be matched.
type Error struct {
	Class   Class
	Code    string
	Message string
	cause   error
}

// New returns a sentinel error.
func New(class Class, code, message string) *Error {
	return &Error{Class: class, Code: code, Message: message}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithMessage returns a copy of e with a different user-visible message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// ClassOf returns the class of the first *Error in err's chain.
func ClassOf(err error) Class {
	var e *Error
	if errors.As(err, &e) {
		return e.Class
	}
	return ClassInternal
}

// CodeOf returns the code of the first *Error in err's chain, or "internal".
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}

// MessageOf returns a message safe to show to end users.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An unexpected error occurred. Please try again"
}

// IsTransient reports whether err is worth one more attempt.
func IsTransient(err error) bool { return ClassOf(err) == ClassTransient }
