package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Error kinds shared by every component. Callers test them with errors.Is;
// auth and vault re-export them.
var (
	ErrValidation = errors.New("validation failed")
	ErrDuplicate  = errors.New("already exists")
	ErrNotFound   = errors.New("not found")
	ErrCrypto     = errors.New("crypto failure")
	ErrStorage    = errors.New("storage failure")
	ErrPermission = errors.New("not permitted")
)

var kinds = []struct {
	err   error
	label string
}{
	{ErrValidation, "validation"},
	{ErrDuplicate, "duplicate"},
	{ErrNotFound, "not found"},
	{ErrCrypto, "crypto"},
	{ErrPermission, "permission"},
	{ErrStorage, "storage"},
}

// Kind returns a short label for the kind of err, or "" for nil and
// unclassified errors.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	return ""
}

// Classify maps a driver error onto the error kinds. Errors that already
// carry a kind pass through unchanged. SQLite constraint codes are checked
// first; other drivers fall back to matching the message text.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if Kind(err) != "" {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%s: %w: %w", op, ErrDuplicate, err)
		case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate"):
		return fmt.Errorf("%s: %w: %w", op, ErrDuplicate, err)
	case strings.Contains(msg, "foreign key"):
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
