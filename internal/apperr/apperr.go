// Package apperr defines the error kinds the services return and how they
// surface over HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kinds. Match with errors.Is.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrForbidden      = errors.New("forbidden")
	ErrUnauthorized   = errors.New("unauthorized")
	// ErrTransient marks a storage conflict that survived every retry.
	ErrTransient = errors.New("transient failure")
)

// Error pairs a kind with a caller-facing message.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFound(entity string, id any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf("%s not found with id %v", entity, id)}
}

func Invalid(format string, args ...any) error {
	return &Error{Kind: ErrInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Message: msg}
}

func Unauthorized(msg string) error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

// Transient wraps cause so that both ErrTransient and the cause match.
func Transient(cause error) error {
	return fmt.Errorf("%w: %w", ErrTransient, cause)
}

// Status maps err to an HTTP status code. Unknown errors are 500s.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text safe to show a client.
func Message(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if errors.Is(err, ErrTransient) {
		return "The request conflicted with concurrent updates, please retry"
	}
	return "Internal server error"
}
