// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is usually wrapped by a *ValidationError carrying the field.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")

	// ErrSync is returned when a remote synchronization attempt fails.
	ErrSync = errors.New("synchronization failed")

	// ErrIntegrity is returned when a cross-entity reference is broken,
	// for example a program listing a card that no longer exists.
	ErrIntegrity = errors.New("integrity violation")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError for the given field.
// If err is nil the error wraps ErrValidation.
func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is reports ErrValidation as a match regardless of the wrapped cause.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError reports a missing entity by kind and identifier.
type NotFoundError struct {
	Entity string
	ID     string
}

// NewNotFoundError creates a NotFoundError for an entity keyed by UUID.
func NewNotFoundError(entity string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id.String()}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is reports ErrNotFound as a match.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SyncError wraps a failure talking to the remote store.
// Retryable marks transient failures (network, 5xx, throttling).
type SyncError struct {
	Operation string
	Retryable bool
	Err       error
}

// NewSyncError creates a SyncError for the given remote operation.
func NewSyncError(operation string, retryable bool, err error) *SyncError {
	return &SyncError{Operation: operation, Retryable: retryable, Err: err}
}

func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sync %s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("sync %s failed", e.Operation)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *SyncError) Unwrap() error {
	return e.Err
}

// Is reports ErrSync as a match.
func (e *SyncError) Is(target error) bool {
	return target == ErrSync
}

// IsRetryable reports whether err is a SyncError marked as retryable.
func IsRetryable(err error) bool {
	var syncErr *SyncError
	return errors.As(err, &syncErr) && syncErr.Retryable
}

// IntegrityError reports a program that references a card which is missing.
type IntegrityError struct {
	ProgramID uuid.UUID
	CardID    uuid.UUID
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("program %s references missing card %s", e.ProgramID, e.CardID)
}

// Is reports ErrIntegrity as a match.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
