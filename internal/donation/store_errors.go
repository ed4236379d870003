package donation

import (
	stderrors "errors"
	"strings"

	errors "github.com/sonlife/sonlife-giving/internal"
	datamodel "github.com/sonlife/sonlife-giving/internal/core/datamodel/donation"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// SQLSTATE codes the store can report.
const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateUndefinedTable      = "42P01"
	sqlStateUndefinedColumn     = "42703"

	// PostgREST schema cache misses
	pgrstTableNotFound  = "PGRST205"
	pgrstColumnNotFound = "PGRST204"
)

var (
	errTableMissing = errors.ErrStoreMisconfigured.WithMessage("Database table not found. Please ensure the donations table exists")
	errBadStructure = errors.ErrStoreMisconfigured.WithMessage("Invalid donation data structure")
)

// ClassifyStoreError maps a store failure to one of the known categories. It
// returns nil when the failure fits none of them.
func ClassifyStoreError(err error) *errors.AppError {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.ErrDuplicateReference.WithCause(err)
	}
	if stderrors.Is(err, gorm.ErrForeignKeyViolated) {
		return errors.ErrDataIntegrity.WithCause(err)
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		if appErr := classifyCode(pgErr.Code); appErr != nil {
			return appErr.WithCause(err)
		}
	}

	var storeErr *datamodel.StoreError
	if stderrors.As(err, &storeErr) {
		if appErr := classifyCode(storeErr.Code); appErr != nil {
			return appErr.WithCause(err)
		}
	}

	// sqlite reports constraint failures as text only
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return errors.ErrDuplicateReference.WithCause(err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return errors.ErrDataIntegrity.WithCause(err)
	case strings.Contains(msg, "no such table"):
		return errTableMissing.WithCause(err)
	case strings.Contains(msg, "no such column"), strings.Contains(msg, "has no column named"):
		return errBadStructure.WithCause(err)
	}

	return nil
}

func classifyCode(code string) *errors.AppError {
	switch code {
	case sqlStateUniqueViolation:
		return errors.ErrDuplicateReference
	case sqlStateForeignKeyViolation:
		return errors.ErrDataIntegrity
	case sqlStateUndefinedTable, pgrstTableNotFound:
		return errTableMissing
	case sqlStateUndefinedColumn, pgrstColumnNotFound:
		return errBadStructure
	}
	return nil
}
