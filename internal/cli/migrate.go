package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"guild-dashboard/internal/config"
	"guild-dashboard/internal/repository/postgres"
)

const (
	errMigrateFmt = "migration failed: %w"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the access grant and audit tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		dbCfg, err := config.LoadDatabase()
		if err != nil {
			return fmt.Errorf(errLoadConfigFmt, err)
		}

		db, err := postgres.New(dbCfg)
		if err != nil {
			return fmt.Errorf(errConnectDatabaseFmt, err)
		}
		defer db.Close()

		if err := db.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf(errMigrateFmt, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "schema applied: %v\n", postgres.Tables)
		return nil
	},
}
