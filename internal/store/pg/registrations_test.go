package pg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", ConstraintName: "registrations_conference_email_key"}

	if !isUniqueViolation(dup) {
		t.Fatal("unwrapped 23505 not detected")
	}
	if !isUniqueViolation(fmt.Errorf("create registration: %w", dup)) {
		t.Fatal("wrapped 23505 not detected")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign_key_violation misclassified as unique")
	}
	// "23505" en el texto no alcanza: tiene que ser el código del driver
	if isUniqueViolation(errors.New("row with id 23505 not found")) {
		t.Fatal("matched on message text instead of the error code")
	}
	if isUniqueViolation(nil) {
		t.Fatal("nil is not a violation")
	}
}
