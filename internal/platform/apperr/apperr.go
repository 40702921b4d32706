// Package apperr defines the error taxonomy surfaced by the API and the echo
// error handler that renders it.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindUnavailable    Kind = "unavailable"
	KindInternal       Kind = "internal"
)

// FieldViolation describes a single failed rule on a single input field.
type FieldViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// Error is the structured error returned by services and middleware.
type Error struct {
	Kind       Kind
	Message    string
	Violations []FieldViolation
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status maps the error kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Validation returns a validation error carrying every violation found.
func Validation(violations ...FieldViolation) *Error {
	return &Error{Kind: KindValidation, Message: "validation failed", Violations: violations}
}

// Authentication returns an authentication error. cause may be nil.
func Authentication(message string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: message, Err: cause}
}

// NotFound returns a not-found error for the given resource and identifier.
func NotFound(resource string, id any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %v not found", resource, id)}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Unavailable(message string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Message: message, Err: cause}
}

// Internal wraps an unexpected error. The cause is logged, never rendered.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal server error", Err: cause}
}

// IsKind reports whether err (or anything it wraps) is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
