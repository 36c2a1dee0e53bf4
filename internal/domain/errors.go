package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidInput marks malformed or out-of-range request fields.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration marks a rule that cannot be evaluated as written.
	ErrConfiguration = errors.New("invalid rule configuration")

	// ErrHistoryUnavailable marks a failed read or write of transaction history.
	// Scoring has no fallback for it.
	ErrHistoryUnavailable = errors.New("transaction history unavailable")

	// ErrNotFound marks a lookup of a record that does not exist.
	ErrNotFound = errors.New("record not found")
)

// ValidationError carries per-field messages for a rejected payload.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError returns an empty ValidationError ready for AddError.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// AddError records a message for field.
func (v *ValidationError) AddError(field, message string) {
	v.Fields[field] = message
}

// HasErrors reports whether any field failed.
func (v *ValidationError) HasErrors() bool {
	return len(v.Fields) > 0
}

// Error lists field messages in field order.
func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, v.Fields[k]))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (v *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
