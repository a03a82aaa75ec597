// Package errors provides the structured error taxonomy every store
// operation reports: unauthenticated, precondition, remote_rejected,
// remote_unreachable.
package errors

import (
	"errors"
	"fmt"
)

// ErrorType is the category of a failed operation.
type ErrorType string

const (
	// TypeUnauthenticated indicates no identity or bearer credential.
	TypeUnauthenticated ErrorType = "unauthenticated"
	// TypePrecondition indicates a local precondition failure: no active
	// session, empty input, busy-flag collision. No request was issued.
	TypePrecondition ErrorType = "precondition"
	// TypeRemoteRejected indicates the service answered with a non-success
	// response; Message carries the service's detail string when available.
	TypeRemoteRejected ErrorType = "remote_rejected"
	// TypeRemoteUnreachable indicates a network-level failure or a bounded
	// wait that expired.
	TypeRemoteUnreachable ErrorType = "remote_unreachable"
)

// Error is a structured error with type, message, cause, and context fields.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Unauthenticated creates an unauthenticated error.
func Unauthenticated(message string) *Error {
	return &Error{Type: TypeUnauthenticated, Message: message, Context: make(map[string]any)}
}

// Precondition creates a local precondition error.
func Precondition(message string) *Error {
	return &Error{Type: TypePrecondition, Message: message, Context: make(map[string]any)}
}

// RemoteRejected creates an error for a non-success service response.
func RemoteRejected(message string, cause error) *Error {
	return &Error{Type: TypeRemoteRejected, Message: message, Cause: cause, Context: make(map[string]any)}
}

// RemoteUnreachable creates an error for a network-level failure.
func RemoteUnreachable(message string, cause error) *Error {
	return &Error{Type: TypeRemoteUnreachable, Message: message, Cause: cause, Context: make(map[string]any)}
}

// WithContext adds a context field to the error (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsType reports whether err is a structured error of the given type.
func IsType(err error, t ErrorType) bool {
	var structured *Error
	return errors.As(err, &structured) && structured.Type == t
}

// AsStructured converts any error into a structured Error. If err is already
// an *Error it is returned unchanged; otherwise it is wrapped as
// remote_unreachable with a generic message.
func AsStructured(err error) *Error {
	if err == nil {
		return nil
	}

	var structured *Error
	if errors.As(err, &structured) {
		return structured
	}

	return RemoteUnreachable("service unavailable", err)
}

// UserMessage returns the text to surface for a failed operation: the
// service's detail for rejections, a generic fallback otherwise.
func UserMessage(err error) string {
	structured := AsStructured(err)
	if structured == nil {
		return ""
	}

	switch structured.Type {
	case TypeUnauthenticated:
		return "You are not logged in."
	case TypeRemoteUnreachable:
		return "The service could not be reached. Please try again."
	default:
		return structured.Message
	}
}
