// Package apperr defines the application error taxonomy: validation errors
// map to 400, not-found to 404, store errors to 500. On-chain failures are
// not request-level errors; they land in per-row ledgers instead.
package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Kind classifies an application error.
type Kind int

const (
	// Validation is bad input shape or range. Not retried.
	Validation Kind = iota
	// NotFound is a missing institution or loan.
	NotFound
	// Store is a failed database operation. Not retried.
	Store
)

// Error carries a kind, a caller-facing message and an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// StatusCode maps the error kind to an HTTP status code.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case Validation:
		return fiber.StatusBadRequest
	case NotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// NewValidation returns a 400-class error with the given message.
func NewValidation(msg string) *Error {
	return &Error{Kind: Validation, Msg: msg}
}

// NewNotFound returns a 404-class error with the given message.
func NewNotFound(msg string) *Error {
	return &Error{Kind: NotFound, Msg: msg}
}

// NewStore wraps a failed database operation. The caller-facing message stays
// generic; the cause is kept for logging.
func NewStore(msg string, err error) *Error {
	return &Error{Kind: Store, Msg: msg, Err: err}
}

// As extracts an *Error from err, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
