// Package apperr defines the error taxonomy shared by the service and HTTP layers.
//
// Every error surfaced to a caller carries a kind (one of the sentinel values below)
// and a user-facing message. The kind decides the HTTP status; the message is sent
// to the client verbatim.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrDelivery         = errors.New("delivery error")
	ErrInternal         = errors.New("internal error")
)

// Error is an operational error with a client-safe message.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the underlying cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

func New(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind error, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Validation(message string) *Error       { return New(ErrValidation, message) }
func NotAuthenticated(message string) *Error { return New(ErrNotAuthenticated, message) }
func Forbidden(message string) *Error        { return New(ErrForbidden, message) }
func NotFound(message string) *Error         { return New(ErrNotFound, message) }
func Conflict(message string) *Error         { return New(ErrConflict, message) }

// Status maps an error to its HTTP status code. Errors outside the taxonomy are 500.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the client-facing message of an operational error, or ok=false
// when err is not an *Error (programming or infrastructure failure).
func Message(err error) (msg string, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Message, true
	}
	return "", false
}
