package bridge

import (
	"errors"
	"fmt"
)

// ErrorType represents the categories of failure an operation can report.
type ErrorType int

const (
	// ErrorTypeUnknown represents an unclassified failure
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeProviderNotFound represents a provider name with no factory
	ErrorTypeProviderNotFound
	// ErrorTypeInvalidHandle represents a handle that names no open transaction
	ErrorTypeInvalidHandle
	// ErrorTypeNative represents a failure raised by the database driver
	ErrorTypeNative
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeProviderNotFound:
		return "provider_not_found"
	case ErrorTypeInvalidHandle:
		return "invalid_handle"
	case ErrorTypeNative:
		return "native"
	default:
		return "unknown"
	}
}

// Error is the error returned by every bridge operation.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsType checks if the error is of a specific type
func (e *Error) IsType(errorType ErrorType) bool {
	return e.Type == errorType
}

// NewProviderNotFoundError reports a provider name missing from the registry.
func NewProviderNotFoundError(provider string) *Error {
	return &Error{
		Type:    ErrorTypeProviderNotFound,
		Message: fmt.Sprintf("failed to load provider %s", provider),
	}
}

// NewInvalidHandleError reports a transaction handle that is not open.
func NewInvalidHandleError(handle string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeInvalidHandle,
		Message: fmt.Sprintf("invalid transaction handle: %s", handle),
		Cause:   cause,
	}
}

// NewNativeError wraps a failure raised by the driver.
func NewNativeError(message string, cause error) *Error {
	return &Error{
		Type:    ErrorTypeNative,
		Message: message,
		Cause:   cause,
	}
}

// TypeOf returns the ErrorType carried by err, or ErrorTypeUnknown.
func TypeOf(err error) ErrorType {
	var bridgeErr *Error
	if errors.As(err, &bridgeErr) {
		return bridgeErr.Type
	}
	return ErrorTypeUnknown
}
