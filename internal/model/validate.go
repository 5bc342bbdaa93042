package model

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// ValidateAcceleration checks a decoded request vector. Every component is
// required and must be a finite number.
func ValidateAcceleration(a *Acceleration) error {
	if a == nil {
		return &ValidationError{Errors: []FieldError{{Field: "body", Message: "is required"}}}
	}
	var ve ValidationError
	for _, c := range []struct {
		name string
		v    *float64
	}{{"x", a.X}, {"y", a.Y}, {"z", a.Z}} {
		switch {
		case c.v == nil:
			ve.Errors = append(ve.Errors, FieldError{Field: c.name, Message: "is required"})
		case math.IsNaN(*c.v) || math.IsInf(*c.v, 0):
			ve.Errors = append(ve.Errors, FieldError{
				Field:   c.name,
				Message: fmt.Sprintf("must be a finite number, got %v", *c.v),
			})
		}
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
