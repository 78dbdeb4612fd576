package services

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map them to HTTP statuses with errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("paste not found")
	ErrForbidden   = errors.New("invalid admin password")
	ErrPersistence = errors.New("storage failure")
)

// Error carries a kind, a client-safe message and the underlying cause
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Is matches the error against its kind
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Unwrap exposes the cause
func (e *Error) Unwrap() error {
	return e.Cause
}

func validationError(msg string) error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func notFoundError() error {
	return &Error{Kind: ErrNotFound, Message: "Paste not found"}
}

func forbiddenError() error {
	return &Error{Kind: ErrForbidden, Message: "Unauthorized: Admin access required"}
}

func persistenceError(msg string, cause error) error {
	return &Error{Kind: ErrPersistence, Message: msg, Cause: cause}
}

// PublicMessage returns the client-safe message of err, or a generic one
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Internal server error"
}
