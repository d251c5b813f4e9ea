package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a write that is missing a required field.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when an identifier matches no stored record.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidID is returned when an identifier is not in the store's format.
	ErrInvalidID = errors.New("invalid identifier")
)

// ValidationError names the field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrValidation) match any ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Required builds the ValidationError for a missing field.
func Required(field string) error {
	return &ValidationError{Field: field}
}
