package filesystem

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred.
type ErrorCode int

const (
	// ErrNotFound indicates an identifier does not resolve to a node, or
	// resolves to a node of the wrong kind for a lookup.
	ErrNotFound ErrorCode = iota + 1

	// ErrInvalidOperation indicates the operation would violate a structural
	// invariant (touching root, creating a cycle, wrong node kind for a field).
	ErrInvalidOperation

	// ErrInvalidPath indicates a navigation path failed validation.
	ErrInvalidPath

	// ErrStaleReference indicates a cached identifier or navigation path was
	// invalidated by a later deletion.
	ErrStaleReference
)

// String returns a human-readable name for the error code.
func (e ErrorCode) String() string {
	switch e {
	case ErrNotFound:
		return "NotFound"
	case ErrInvalidOperation:
		return "InvalidOperation"
	case ErrInvalidPath:
		return "InvalidPath"
	case ErrStaleReference:
		return "StaleReference"
	default:
		return fmt.Sprintf("Unknown(%d)", e)
	}
}

// StoreError is the error type returned by every tree and session operation.
type StoreError struct {
	Code    ErrorCode
	Message string
	ID      NodeID
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s (id: %s)", e.Code, e.Message, e.ID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *StoreError with the same Code so that errors.Is works
// against the sentinels below.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for use with errors.Is
var (
	NotFound         = &StoreError{Code: ErrNotFound, Message: "not found"}
	InvalidOperation = &StoreError{Code: ErrInvalidOperation, Message: "invalid operation"}
	InvalidPath      = &StoreError{Code: ErrInvalidPath, Message: "invalid path"}
	StaleReference   = &StoreError{Code: ErrStaleReference, Message: "stale reference"}
)

// NewNotFoundError creates a NotFound error. what describes the expected
// resource, e.g. "node" or "folder".
func NewNotFoundError(id NodeID, what string) *StoreError {
	return &StoreError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", what),
		ID:      id,
	}
}

// NewInvalidOperationError creates an InvalidOperation error.
func NewInvalidOperationError(id NodeID, message string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidOperation,
		Message: message,
		ID:      id,
	}
}

// NewInvalidPathError creates an InvalidPath error.
func NewInvalidPathError(message string) *StoreError {
	return &StoreError{
		Code:    ErrInvalidPath,
		Message: message,
	}
}

// NewStaleReferenceError creates a StaleReference error.
func NewStaleReferenceError(id NodeID, message string) *StoreError {
	return &StoreError{
		Code:    ErrStaleReference,
		Message: message,
		ID:      id,
	}
}

// CodeOf returns the ErrorCode carried by err, or 0 if err is not a StoreError.
func CodeOf(err error) ErrorCode {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	return 0
}

// IsNotFound returns true if the error is a NotFound error.
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrNotFound
}

// IsInvalidOperation returns true if the error is an InvalidOperation error.
func IsInvalidOperation(err error) bool {
	return CodeOf(err) == ErrInvalidOperation
}

// IsInvalidPath returns true if the error is an InvalidPath error.
func IsInvalidPath(err error) bool {
	return CodeOf(err) == ErrInvalidPath
}

// IsStaleReference returns true if the error is a StaleReference error.
func IsStaleReference(err error) bool {
	return CodeOf(err) == ErrStaleReference
}
