package postgres

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema/schema.sql
var schemaSQL string

// Tables lists the tables Migrate creates.
var Tables = []string{"access_grants", "audit_events"}

// Migrate applies the schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return errFailedApplySchema(err)
	}
	return db.VerifyTables(ctx)
}

func (db *DB) VerifyTables(ctx context.Context) error {
	query := `SELECT EXISTS (
		SELECT FROM information_schema.tables
		WHERE table_schema = 'public'
		AND table_name = $1
	)`

	for _, table := range Tables {
		var exists bool
		if err := db.Pool.QueryRow(ctx, query, table).Scan(&exists); err != nil {
			return fmt.Errorf(errFailedVerifyTableFmt, table, err)
		}
		if !exists {
			return fmt.Errorf(errTableMissingFmt, table)
		}
	}
	return nil
}
