package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewAndAccessors(t *testing.T) {
	err := New(CodeValidation, "imei must be 15 digits")
	if err.Code() != CodeValidation {
		t.Fatalf("unexpected code %q", err.Code())
	}
	if err.Message() != "imei must be 15 digits" {
		t.Fatalf("unexpected message %q", err.Message())
	}
	if got := err.Error(); got != "VALIDATION_ERROR: imei must be 15 digits" {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "inventory registry lookup")
	if !stdErrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be unwrappable")
	}
	if Wrap(CodeDependency, nil, "no cause").Unwrap() != nil {
		t.Fatal("expected nil cause when wrapping nil")
	}
}

func TestAs(t *testing.T) {
	base := New(CodePrecondition, "sale is not pending")
	wrapped := fmt.Errorf("validate sale: %w", base)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected As to find typed error")
	}
	if typed.Code() != CodePrecondition {
		t.Fatalf("unexpected code %q", typed.Code())
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("expected nil for untyped error")
	}
}

func TestHasCode(t *testing.T) {
	err := New(CodeConflict, "request already open")
	if !HasCode(err, CodeConflict) {
		t.Fatal("expected HasCode to match")
	}
	if HasCode(err, CodeNotFound) {
		t.Fatal("expected HasCode mismatch")
	}
	if HasCode(nil, CodeConflict) {
		t.Fatal("expected false for nil error")
	}
}

func TestMetadataFor(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodePrecondition, http.StatusUnprocessableEntity},
		{CodeConflict, http.StatusConflict},
		{CodeDependency, http.StatusServiceUnavailable},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := MetadataFor(tc.code).HTTPStatus; got != tc.status {
			t.Fatalf("code %s: expected status %d, got %d", tc.code, tc.status, got)
		}
	}
}
