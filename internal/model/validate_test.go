package model

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return ve.Errors
}

func TestValidateAcceleration(t *testing.T) {
	tests := []struct {
		name   string
		acc    *Acceleration
		fields []string
	}{
		{name: "valid", acc: Vector(0.1, 0.2, 9.8)},
		{name: "negative and zero", acc: Vector(-20, 0, -0.5)},
		{name: "nil body", acc: nil, fields: []string{"body"}},
		{name: "missing y", acc: &Acceleration{X: ptr(1), Z: ptr(1)}, fields: []string{"y"}},
		{name: "all missing", acc: &Acceleration{}, fields: []string{"x", "y", "z"}},
		{name: "NaN", acc: Vector(math.NaN(), 0, 0), fields: []string{"x"}},
		{name: "infinite", acc: Vector(0, math.Inf(1), math.Inf(-1)), fields: []string{"y", "z"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAcceleration(tc.acc)
			if len(tc.fields) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			errs := fieldErrors(t, err)
			if len(errs) != len(tc.fields) {
				t.Fatalf("got %d field errors (%v), want %v", len(errs), errs, tc.fields)
			}
			for i, f := range tc.fields {
				if errs[i].Field != f {
					t.Errorf("error %d field = %q, want %q", i, errs[i].Field, f)
				}
			}
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{
		{Field: "x", Message: "is required"},
		{Field: "z", Message: "must be a finite number, got NaN"},
	}}
	got := ve.Error()
	if !strings.HasPrefix(got, "validation failed: ") {
		t.Errorf("Error() = %q", got)
	}
	if !strings.Contains(got, "x: is required; z: must be a finite number") {
		t.Errorf("Error() = %q", got)
	}
	if !ve.HasErrors() || (&ValidationError{}).HasErrors() {
		t.Error("HasErrors mismatch")
	}
}
