package dbauth

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// ErrDuplicateKey marks a uniqueness constraint violation surfaced by the
// storage layer. Repository implementations wrap the driver error with it so
// callers can pick an error kind without inspecting driver types.
var ErrDuplicateKey = errors.New("duplicate key violation")

// IsDuplicateKey reports whether err is a uniqueness constraint violation.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, ErrDuplicateKey)
}

// ErrRecordNotFound is returned by SelectSingle when no row matches the id.
var ErrRecordNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// IsRecordNotFound reports whether err is a missing-row error.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrRecordNotFound)
}

// isUniqueViolation matches the unique-constraint messages of the dialects
// the Bun adapter runs against (SQLite, Postgres, MySQL). Other constraint
// failures (NOT NULL, CHECK) must not match; they are input errors, not
// duplicates.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "Duplicate entry")
}
