package shared

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so that
// errors created with NewDomainError match the predefined sentinels.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return de.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound                 = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists            = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput             = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict      = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState             = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientStock        = NewDomainError("INSUFFICIENT_STOCK", "Insufficient stock available")
	ErrInvalidPlan              = NewDomainError("INVALID_PLAN", "Installment plan parameters are invalid")
	ErrInsufficientInstallments = NewDomainError("INSUFFICIENT_INSTALLMENTS", "New installment count must exceed the number of paid installments")
)

// NotFoundError builds a NOT_FOUND error naming the missing entity.
func NotFoundError(entity, id string) *DomainError {
	return NewDomainError("NOT_FOUND", fmt.Sprintf("%s %s not found", entity, id))
}

// PersistenceError wraps a failure of the underlying record store.
type PersistenceError struct {
	Op         string
	Collection Collection
	Err        error
}

// Error implements the error interface
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s %s: %v", e.Op, e.Collection, e.Err)
}

// Unwrap returns the underlying store error
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Code returns the error code used by the HTTP layer
func (e *PersistenceError) Code() string {
	return "PERSISTENCE_ERROR"
}

// NewPersistenceError wraps err unless it is already a domain or persistence error.
func NewPersistenceError(op string, collection Collection, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	var pe *PersistenceError
	if errors.As(err, &de) || errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Collection: collection, Err: err}
}
