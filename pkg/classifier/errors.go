package classifier

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrNotReady is returned when the model has not signalled ready.
	ErrNotReady = errors.New("classifier: model not ready")

	// ErrBusy is returned when a classification is already in flight.
	ErrBusy = errors.New("classifier: classification in flight")

	// ErrNoResult is returned when the model produced no scores.
	ErrNoResult = errors.New("classifier: no result")

	// ErrEmptyFrame is returned when asked to classify a frame without data.
	ErrEmptyFrame = errors.New("classifier: empty frame")

	// ErrUnavailable is returned when no backend is configured or the
	// backend has been closed.
	ErrUnavailable = errors.New("classifier: unavailable")
)

// Error wraps a failure with the backend that produced it.
type Error struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("classifier [%s]: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with backend context.
func WrapError(backend string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Backend: backend, Err: err}
}

// ChainError aggregates errors from every classifier in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "classifier chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("classifier chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("classifier chain: all %d backends failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}
