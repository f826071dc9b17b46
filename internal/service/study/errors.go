package study

import (
	"errors"
	"fmt"

	"github.com/phrazzld/flashdeck/internal/service"
)

// Common error types for the study service
var (
	// ErrSessionClosed indicates the session was discarded.
	ErrSessionClosed = errors.New("session is closed")

	// ErrSessionNotFound indicates no open session has the given ID for the user.
	ErrSessionNotFound = errors.New("session not found")

	// ErrCardNotOwned indicates that the user does not own the card.
	ErrCardNotOwned = fmt.Errorf("card: %w", service.ErrNotOwned)

	// ErrProgramNotOwned indicates that the program is neither generic nor
	// owned by the user.
	ErrProgramNotOwned = fmt.Errorf("program: %w", service.ErrNotOwned)
)

// ServiceError wraps errors from the study service with additional context.
// This allows consumers to differentiate between different types of service errors
// using errors.As instead of string matching.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "flush", "acknowledge_achievement")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s operation failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("%s operation failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewFlushError returns a new ServiceError for the flush operation.
func NewFlushError(message string, err error) *ServiceError {
	return &ServiceError{Operation: "flush", Message: message, Err: err}
}

// NewDueCardsError returns a new ServiceError for the due_cards operation.
func NewDueCardsError(message string, err error) *ServiceError {
	return &ServiceError{Operation: "due_cards", Message: message, Err: err}
}

// NewAcknowledgeError returns a new ServiceError for the
// acknowledge_achievement operation.
func NewAcknowledgeError(message string, err error) *ServiceError {
	return &ServiceError{Operation: "acknowledge_achievement", Message: message, Err: err}
}
