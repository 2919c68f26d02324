package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get for a missing id or an id of another kind.
	ErrNotFound    = errors.New("not found")
	ErrUnknownKind = errors.New("unknown entity kind")
	ErrScopeClosed = errors.New("storage scope is closed")
)

// ValidationError reports a malformed record or request field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// PersistenceError wraps a failure of the durable medium.
type PersistenceError struct {
	Backend string
	Op      string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s storage: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// StateError is returned for operations on a closed relational scope.
type StateError struct{ Op string }

func (e *StateError) Error() string { return fmt.Sprintf("storage: %s on closed scope", e.Op) }

func (e *StateError) Unwrap() error { return ErrScopeClosed }
