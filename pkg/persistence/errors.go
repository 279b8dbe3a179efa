package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrFlowNotFound indicates a flow was not found by the given identity.
	ErrFlowNotFound = errors.New("flow not found")

	// ErrWindowNotFound indicates no window row exists for the derived key.
	ErrWindowNotFound = errors.New("multiple condition window not found")
)

// FlowError wraps flow-related storage errors with additional context.
type FlowError struct {
	Op        string // Operation being performed (e.g., "FlowByID", "Save")
	Namespace string
	FlowID    string
	Err       error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%s operation failed for flow %s/%s: %v", e.Op, e.Namespace, e.FlowID, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewFlowError creates a new flow error with context.
func NewFlowError(op, namespace, flowID string, err error) *FlowError {
	return &FlowError{Op: op, Namespace: namespace, FlowID: flowID, Err: err}
}

// WindowError wraps window-related storage errors with additional context.
type WindowError struct {
	Op  string // Operation being performed (e.g., "GetOrCreate", "Save")
	Key string // Derived window key
	Err error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("%s operation failed for window %s: %v", e.Op, e.Key, e.Err)
}

func (e *WindowError) Unwrap() error {
	return e.Err
}

func (e *WindowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWindowError creates a new window error with context.
func NewWindowError(op, key string, err error) *WindowError {
	return &WindowError{Op: op, Key: key, Err: err}
}

// IsFlowNotFound checks if an error indicates a flow was not found.
func IsFlowNotFound(err error) bool {
	return errors.Is(err, ErrFlowNotFound)
}

// IsWindowNotFound checks if an error indicates a window was not found.
func IsWindowNotFound(err error) bool {
	return errors.Is(err, ErrWindowNotFound)
}
