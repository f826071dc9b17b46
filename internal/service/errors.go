// Package service holds the application services. Each subpackage
// coordinates the domain packages and the store for one area: study
// sessions, deck management and sharing, and token authentication.
package service

import (
	"errors"
	"fmt"
)

// ErrNotOwned is returned when a user touches a card, program or share
// belonging to someone else. The API maps it to 403.
var ErrNotOwned = errors.New("resource is owned by another user")

// ServiceError names the service and operation that failed.
type ServiceError struct {
	Service string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s service %s operation failed: %v", e.Service, e.Op, e.Err)
	}
	return fmt.Sprintf("%s service %s operation failed", e.Service, e.Op)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a ServiceError.
func NewServiceError(service, op string, err error) error {
	return &ServiceError{Service: service, Op: op, Err: err}
}
