package store

import (
	"errors"
	"fmt"

	"github.com/phrazzld/flashdeck/internal/domain"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	// It is the domain sentinel so callers can match either name.
	ErrNotFound = domain.ErrNotFound

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity (e.g., a share code collision).
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation before
	// being stored. Check the wrapped error for specific validation details.
	ErrInvalidEntity = fmt.Errorf("%w: invalid entity", domain.ErrValidation)

	// ErrTransactionFailed is returned when a database transaction fails
	// to commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// Entity-specific "not found" errors

	// ErrCardNotFound indicates that the requested card does not exist in the store.
	ErrCardNotFound = fmt.Errorf("%w: card", ErrNotFound)

	// ErrProgramNotFound indicates that the requested program does not exist in the store.
	ErrProgramNotFound = fmt.Errorf("%w: program", ErrNotFound)

	// ErrStatsNotFound indicates the user has never saved stats.
	ErrStatsNotFound = fmt.Errorf("%w: user stats", ErrNotFound)

	// ErrShareNotFound indicates that no share exists for the given code.
	ErrShareNotFound = fmt.Errorf("%w: share", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError checks if the error is any kind of "duplicate" error.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}

// InvalidEntity wraps a validation failure so that it matches both
// ErrInvalidEntity and the original validation error.
func InvalidEntity(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidEntity, err)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "card", "program")
	Operation string // The operation that failed (e.g., "upsert", "remove")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
