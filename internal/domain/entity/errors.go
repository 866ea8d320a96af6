package entity

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrValidation is returned when input fails validation
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a service request does not exist
	ErrNotFound = errors.New("service request not found")

	// ErrUpstream is returned when an AI provider call fails or times out
	ErrUpstream = errors.New("ai provider error")

	// ErrParse is returned when an AI provider answer cannot be interpreted
	ErrParse = errors.New("ai response parse error")

	// ErrStore is returned when the datastore fails
	ErrStore = errors.New("datastore error")

	// ErrUnsupportedOperation is returned by engines that do not implement an operation
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrNoFields is returned for an update that carries nothing to change
	ErrNoFields = errors.New("no fields to update")
)

// ValidationError carries per-field validation messages
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrValidation
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError builds a ValidationError for a single field
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
