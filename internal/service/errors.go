package service

import "errors"

// Error kinds returned by AccountService. Callers match them with errors.Is.
var (
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrAlreadyVerified = errors.New("already verified")
	ErrInvalid         = errors.New("invalid")
	ErrExpired         = errors.New("expired")
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthorized    = errors.New("unauthorized")
)

// Error carries a client-safe message alongside its kind.
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

func fail(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}
