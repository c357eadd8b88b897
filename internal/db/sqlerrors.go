package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// ErrRetriesExceeded is returned when a transaction is retried more than the
// max allowed value without a success.
var ErrRetriesExceeded = errors.New("db tx retries exceeded")

// MapSQLError translates driver errors into the database agnostic error
// types below. Unknown errors are returned unchanged.
func MapSQLError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return parseSqliteError(sqliteErr)
	}

	return err
}

func parseSqliteError(sqliteErr sqlite3.Error) error {
	switch sqliteErr.Code {
	case sqlite3.ErrConstraint:
		if sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {

			return &ErrSQLUniqueConstraintViolation{DBError: sqliteErr}
		}

		return fmt.Errorf("sqlite constraint error: %w", sqliteErr)

	// Another connection holds the write lock.
	case sqlite3.ErrBusy:
		return &ErrSerializationError{DBError: sqliteErr}

	// A conflict within the same connection.
	case sqlite3.ErrLocked:
		return &ErrDeadlockError{DBError: sqliteErr}

	case sqlite3.ErrError:
		if strings.Contains(sqliteErr.Error(), "no such table") {
			return &ErrSchemaError{DBError: sqliteErr}
		}

		return fmt.Errorf("unknown sqlite error: %w", sqliteErr)

	default:
		return fmt.Errorf("unknown sqlite error: %w", sqliteErr)
	}
}

// ErrSQLUniqueConstraintViolation is a unique or primary key violation.
type ErrSQLUniqueConstraintViolation struct {
	DBError error
}

func (e ErrSQLUniqueConstraintViolation) Error() string {
	return fmt.Sprintf("sql unique constraint violation: %v", e.DBError)
}

func (e ErrSQLUniqueConstraintViolation) Unwrap() error {
	return e.DBError
}

// ErrSerializationError means the transaction lost a race with a concurrent
// writer and may be retried.
type ErrSerializationError struct {
	DBError error
}

func (e ErrSerializationError) Error() string {
	return e.DBError.Error()
}

func (e ErrSerializationError) Unwrap() error {
	return e.DBError
}

// ErrDeadlockError means lock acquisition formed a cycle; retryable.
type ErrDeadlockError struct {
	DBError error
}

func (e ErrDeadlockError) Error() string {
	return e.DBError.Error()
}

func (e ErrDeadlockError) Unwrap() error {
	return e.DBError
}

// ErrSchemaError means the schema does not match the query, usually because
// migrations have not run.
type ErrSchemaError struct {
	DBError error
}

func (e ErrSchemaError) Error() string {
	return e.DBError.Error()
}

func (e ErrSchemaError) Unwrap() error {
	return e.DBError
}

// IsSerializationOrDeadlockError reports whether err is retryable.
func IsSerializationOrDeadlockError(err error) bool {
	var (
		serErr  *ErrSerializationError
		lockErr *ErrDeadlockError
	)

	return errors.As(err, &serErr) || errors.As(err, &lockErr)
}

// IsSchemaError returns true if the given error is a schema error.
func IsSchemaError(err error) bool {
	var schemaErr *ErrSchemaError
	return errors.As(err, &schemaErr)
}
