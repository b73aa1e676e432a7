package model

import (
	"errors"
	"fmt"
)

// Sentinel errors let the HTTP layer map failures to status codes with
// errors.Is.
var (
	ErrValidation  = errors.New("validation failed")
	ErrForbidden   = errors.New("not authorized")
	ErrNotFound    = errors.New("complaint not found")
	ErrDuplicateID = errors.New("complaint id already exists")
)

// ValidationError names the field that failed. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
