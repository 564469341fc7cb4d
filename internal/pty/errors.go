package pty

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidID        = errors.New("invalid session id")
	ErrAllocationFailed = errors.New("pty allocation failed")
	ErrSpawnFailed      = errors.New("shell spawn failed")
	ErrWriteFailed      = errors.New("pty write failed")
	ErrResizeFailed     = errors.New("pty resize failed")
)

// Error records a failed registry operation. It unwraps to both its Kind
// sentinel and the underlying cause, so errors.Is works against either.
type Error struct {
	Op   string
	ID   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %q: %v", e.Op, e.ID, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op, id string, kind, err error) *Error {
	return &Error{Op: op, ID: id, Kind: kind, Err: err}
}
