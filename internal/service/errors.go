package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

func internalError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func validationError(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// lookupError maps a repository read failure: sql.ErrNoRows becomes NotFound.
func lookupError(err error, notFound, failure string) *appErrors.Error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return internalError(err, failure)
}

// intervalError maps scheduler interval failures onto the API taxonomy.
func intervalError(err error) *appErrors.Error {
	if errors.Is(err, scheduler.ErrInvalidInterval) {
		return appErrors.Wrap(err, appErrors.ErrInvalidInterval.Code, appErrors.ErrInvalidInterval.Status, err.Error())
	}
	return internalError(err, "failed to validate interval")
}

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// writeError maps constraint violations that slipped past the service level checks.
func writeError(err error, message string) *appErrors.Error {
	switch pqCode(err) {
	case pqForeignKeyViolation:
		return appErrors.Wrap(err, appErrors.ErrHasDependents.Code, appErrors.ErrHasDependents.Status, appErrors.ErrHasDependents.Message)
	case pqUniqueViolation:
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "resource already exists")
	}
	return internalError(err, message)
}

func trimmed(value string) string {
	return strings.TrimSpace(value)
}
