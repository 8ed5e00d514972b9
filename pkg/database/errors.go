package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/medflow/shift-timer/pkg/errors"
)

// MapPQError converts a read-path database error into an AppError.
// Returns nil if the error carries nothing worth translating.
func MapPQError(err error, resource string) *errors.AppError {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource)
	}
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		return errors.Unavailable("database", err)
	}

	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch {
	// Connection exceptions (08xxx) and operator intervention (57xxx)
	case strings.HasPrefix(string(pqErr.Code), "08"), strings.HasPrefix(string(pqErr.Code), "57"):
		return errors.Unavailable("database", err)

	// Invalid text representation (22P02), e.g. a malformed id
	case pqErr.Code == "22P02":
		return errors.BadRequest("malformed " + resource + " identifier")

	// Undefined table or column: the schema is not what we expect
	case pqErr.Code == "42P01", pqErr.Code == "42703":
		return errors.Wrap(err, "SCHEMA_MISMATCH", "database schema is missing "+resource+" data", 500)

	default:
		return nil
	}
}
