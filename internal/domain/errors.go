// Package domain defines error types shared by the synchronization components.
package domain

import "fmt"

// StoreError indicates a failed query or update against the triplestore.
// It is unrecoverable for the task being executed: the task queue translates
// it into the FAILED terminal state.
type StoreError struct {
	Operation string // The store operation that failed (e.g. "select", "update")
	Message   string // Human-readable error message
	Cause     error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("store %s failed: %s (%v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("store %s failed: %s", e.Operation, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// OperationError is a custom error type for synchronization step failures
type OperationError struct {
	Operation string // The step that failed (e.g. "rename-triples", "remap-role-holders")
	Message   string // Human-readable error message
	Cause     error  // Underlying error
}

func (e *OperationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s failed: %s (%v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Message)
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// InconsistencyError indicates the persisted queue state violates an expected
// invariant, e.g. more than one task in the preparing state at once. It is
// surfaced to the caller rather than silently repaired.
type InconsistencyError struct {
	Invariant string
	Detail    string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("queue state inconsistency (%s): %s", e.Invariant, e.Detail)
}

// ValidationError indicates input validation failed
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
}

// NewStoreError creates a new StoreError
func NewStoreError(operation, message string, cause error) *StoreError {
	return &StoreError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewOperationError creates a new OperationError
func NewOperationError(operation, message string, cause error) *OperationError {
	return &OperationError{
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}

// NewInconsistencyError creates a new InconsistencyError
func NewInconsistencyError(invariant, detail string) *InconsistencyError {
	return &InconsistencyError{
		Invariant: invariant,
		Detail:    detail,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
