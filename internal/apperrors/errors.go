package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a typed gateway error. Status is the HTTP status used when the error is
// surfaced on a plain HTTP route or before a websocket upgrade; CloseCode is the
// websocket close code used when it ends an already-upgraded connection.
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Status    int    `json:"-"`
	CloseCode int    `json:"-"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors by code so wrapped copies compare equal to their sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status, closeCode int, message string) *Error {
	return &Error{Code: code, Status: status, CloseCode: closeCode, Message: message}
}

// Wrap attaches a cause to a sentinel, keeping its code and status.
func Wrap(err error, sentinel *Error) *Error {
	clone := *sentinel
	clone.Err = err
	return &clone
}

// WithMessage returns a copy of sentinel carrying a more specific message.
func WithMessage(sentinel *Error, message string) *Error {
	clone := *sentinel
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Private-use websocket close codes (RFC 6455 reserves 4000-4999 for applications).
const (
	CloseMalformedRoute = 4400
	CloseUnauthorized   = 4403
	CloseInternal       = 4500
)

var (
	ErrMalformedRoute          = New("MALFORMED_ROUTE", http.StatusBadRequest, CloseMalformedRoute, "malformed route")
	ErrUnauthorized            = New("UNAUTHORIZED", http.StatusForbidden, CloseUnauthorized, "Unauthorized")
	ErrUnauthenticated         = New("UNAUTHENTICATED", http.StatusUnauthorized, CloseUnauthorized, "missing or invalid identity")
	ErrMalformedMessage        = New("MALFORMED_MESSAGE", http.StatusBadRequest, 0, "malformed message")
	ErrInvalidArchiveReference = New("INVALID_ARCHIVE_REFERENCE", http.StatusBadRequest, 0, "invalid archive reference")
	ErrPersistenceFailed       = New("PERSISTENCE_FAILED", http.StatusInternalServerError, 0, "message could not be stored")
	ErrTransport               = New("TRANSPORT_ERROR", 0, CloseInternal, "transport error")
	ErrNotFound                = New("NOT_FOUND", http.StatusNotFound, 0, "resource not found")
	ErrInvalidStatus           = New("INVALID_STATUS", http.StatusBadRequest, 0, "status cannot be set explicitly")
	ErrInternal                = New("INTERNAL_ERROR", http.StatusInternalServerError, CloseInternal, "internal server error")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal)
}
