package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	apperrors "guild-dashboard/pkg/errors"
)

const pgUndefinedTable = "42P01"

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}

// storeError marks a failed grant query as a store outage. A missing table
// is reported with a hint to run the migration.
func storeError(err error, wrap func(error) error) error {
	if isUndefinedTable(err) {
		return apperrors.StoreUnavailable(errors.New(errSchemaMissing))
	}
	return apperrors.StoreUnavailable(wrap(err))
}
