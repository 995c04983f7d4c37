// Package domain defines core types, interfaces, and errors for the diff task engine.
package domain

import "fmt"

// NotFoundError indicates a task or queue message was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a conflict (e.g., duplicate resource).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// IllegalStateError indicates an operation that is not allowed in the
// current lifecycle state, e.g. canceling a task that was never scheduled.
type IllegalStateError struct {
	Message string
}

func (e *IllegalStateError) Error() string { return e.Message }

// CapacityExceededError indicates the queue rejected a submission because
// its configured size limit was reached.
type CapacityExceededError struct {
	Message string
}

func (e *CapacityExceededError) Error() string { return e.Message }

// TransportError indicates the queue gateway could not reach its backing
// store. It is not recoverable locally.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("queue %s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrIllegalState creates an IllegalStateError with a formatted message.
func ErrIllegalState(format string, args ...interface{}) *IllegalStateError {
	return &IllegalStateError{Message: fmt.Sprintf(format, args...)}
}

// ErrCapacityExceeded creates a CapacityExceededError with a formatted message.
func ErrCapacityExceeded(format string, args ...interface{}) *CapacityExceededError {
	return &CapacityExceededError{Message: fmt.Sprintf(format, args...)}
}

// ErrTransport wraps err as a TransportError for the given gateway operation.
func ErrTransport(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}
