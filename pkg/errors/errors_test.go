package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized},
		{code: CodeForbidden, status: http.StatusForbidden},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict, detailsOK: true},
		{code: CodeStateConflict, status: http.StatusConflict, detailsOK: true},
		{code: CodePaymentRequired, status: http.StatusPaymentRequired},
		{code: CodeRateLimit, status: http.StatusTooManyRequests},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusBadGateway, retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v", tt.code, tt.retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v", tt.code, tt.detailsOK)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("code %s missing public message", tt.code)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	if meta := MetadataFor("SOMETHING_UNKNOWN"); meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestWrapAndAs(t *testing.T) {
	cause := stdErrors.New("stripe timeout")
	wrapped := fmt.Errorf("activate: %w", Wrap(CodeDependency, cause, "retrieve setup intent"))

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error in chain")
	}
	if typed.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", typed.Code())
	}
	if !stdErrors.Is(wrapped, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if !IsCode(wrapped, CodeDependency) || IsCode(wrapped, CodeNotFound) {
		t.Fatal("IsCode mismatch")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("plain errors are not typed")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "bad input").WithDetails(map[string]string{"title": "required"})
	details, ok := err.Details().(map[string]string)
	if !ok || details["title"] != "required" {
		t.Fatalf("unexpected details %#v", err.Details())
	}
}

func TestDumpExtractsPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_users_email", TableName: "users"}
	dump := Dump(Wrap(CodeConflict, pgErr, "insert user"))
	if dump.Code != CodeConflict {
		t.Fatalf("unexpected code %s", dump.Code)
	}
	if dump.PGCode != "23505" || dump.PGConstraint != "ux_users_email" || dump.PGTable != "users" {
		t.Fatalf("unexpected pg fields %+v", dump)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(dump.Chain))
	}
}
