package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariantViolation is returned when an operation would break the outline's
	// structural rules. The graph is left unchanged.
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrValidation is returned for malformed input such as an import payload.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence is returned when the external store fails to read or write.
	ErrPersistence = errors.New("persistence failure")

	// ErrProjectNotFound is returned when a project id is unknown to the store.
	ErrProjectNotFound = errors.New("project not found")

	// ErrNodeNotFound is returned when a node id is not part of the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode is returned when a node id is already taken.
	ErrDuplicateNode = errors.New("duplicate node id")
)

// InvariantError describes a rejected structural operation.
type InvariantError struct {
	Op     string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

func invariant(op, format string, args ...any) error {
	return &InvariantError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError describes a malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// PersistenceError wraps a failure of the external store.
type PersistenceError struct {
	Op        string
	ProjectID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s project %q: %v", e.Op, e.ProjectID, e.Err)
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// NotFound wraps ErrProjectNotFound with the requested id.
func NotFound(projectID string) error {
	return fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
}
