package postgres

import (
	"fmt"
	"time"
)

const (
	poolHealthCheckPeriod = time.Minute
	poolMaxConnLifetime   = time.Hour
	poolMaxConnIdleTime   = 30 * time.Minute
	dbPingTimeout         = 5 * time.Second

	errSchemaMissing = "access_grants table is missing, run the migrate command"

	errFailedParseDatabaseConfigFmt  = "failed to parse database config: %w"
	errFailedCreateConnectionPoolFmt = "failed to create connection pool: %w"
	errFailedPingDatabaseFmt         = "failed to ping database: %w"

	errFailedApplySchemaFmt = "failed to apply schema: %w"
	errFailedVerifyTableFmt = "failed to verify table %s: %w"
	errTableMissingFmt      = "table %s does not exist after migration"

	errFailedLookupGrantFmt = "failed to look up grant: %w"
	errFailedUpsertGrantFmt = "failed to store grant: %w"
	errFailedDeleteGrantFmt = "failed to delete grant: %w"
	errFailedListGrantsFmt  = "failed to list grants: %w"
	errFailedScanGrantFmt   = "failed to scan grant: %w"
	errIterateGrantsFmt     = "error iterating grants: %w"
)

var (
	errFailedApplySchema          = func(err error) error { return fmt.Errorf(errFailedApplySchemaFmt, err) }
	errFailedCreateConnectionPool = func(err error) error { return fmt.Errorf(errFailedCreateConnectionPoolFmt, err) }
	errFailedDeleteGrant          = func(err error) error { return fmt.Errorf(errFailedDeleteGrantFmt, err) }
	errFailedListGrants           = func(err error) error { return fmt.Errorf(errFailedListGrantsFmt, err) }
	errFailedLookupGrant          = func(err error) error { return fmt.Errorf(errFailedLookupGrantFmt, err) }
	errFailedParseDatabaseConfig  = func(err error) error { return fmt.Errorf(errFailedParseDatabaseConfigFmt, err) }
	errFailedPingDatabase         = func(err error) error { return fmt.Errorf(errFailedPingDatabaseFmt, err) }
	errFailedScanGrant            = func(err error) error { return fmt.Errorf(errFailedScanGrantFmt, err) }
	errFailedUpsertGrant          = func(err error) error { return fmt.Errorf(errFailedUpsertGrantFmt, err) }
	errIterateGrants              = func(err error) error { return fmt.Errorf(errIterateGrantsFmt, err) }
)
