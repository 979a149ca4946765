// Package errors provides standardized error handling for the avtdl core.
// It includes error classification, standard error variables, and helper
// functions for consistent error wrapping across packages.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Entity and registry errors
	ErrEntityNotFound  = errors.New("entity not found")
	ErrActorNotFound   = errors.New("actor not found")
	ErrDuplicateEntity = errors.New("entity already registered")
	ErrWrongCategory   = errors.New("operation not supported by entity category")
	ErrAlreadyStarted  = errors.New("already started")
	ErrAlreadyStopped  = errors.New("already stopped")
	ErrShuttingDown    = errors.New("shutting down")

	// Graph and routing errors
	ErrDuplicateChain  = errors.New("chain name already used")
	ErrDanglingRef     = errors.New("card references undeclared entity")
	ErrEmptyCard       = errors.New("card lists no entities")
	ErrStaleGeneration = errors.New("configuration generation replaced")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	// Record errors
	ErrInvalidRecord = errors.New("invalid record")
	ErrFieldNotFound = errors.New("record field not found")

	// Retry errors
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrMissingConfig)
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	return errors.Is(err, ErrInvalidRecord) || errors.Is(err, ErrDanglingRef)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorTransient
	case IsFatal(err):
		return ErrorFatal
	case IsInvalid(err):
		return ErrorInvalid
	default:
		return ErrorTransient
	}
}

// wrap creates a ClassifiedError with component and operation context
func wrap(class ErrorClass, err error, component, operation, context string) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   fmt.Sprintf("%s.%s: %s: %v", component, operation, context, err),
		Component: component,
		Operation: operation,
	}
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, operation, context string) error {
	return wrap(ErrorTransient, err, component, operation, context)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, operation, context string) error {
	return wrap(ErrorInvalid, err, component, operation, context)
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, operation, context string) error {
	return wrap(ErrorFatal, err, component, operation, context)
}

// Is reports whether any error in err's chain matches target.
// Re-exported so callers don't need both this package and the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
