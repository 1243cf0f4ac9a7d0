package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"guild-dashboard/internal/access"
	"guild-dashboard/internal/audit"
	"guild-dashboard/internal/config"
	"guild-dashboard/internal/discord"
	"guild-dashboard/internal/domain/grant"
	"guild-dashboard/internal/repository/postgres"
	"guild-dashboard/pkg/validator"
)

const (
	flagWait        = "wait"
	defaultWait     = 10 * time.Second
	operatorID      = "operator"
	operatorName    = "operator"
	argUserID       = "user_id"
	timeLayout      = time.RFC3339
	noGrantedBy     = "-"
	errChangeFmt    = "access change failed: %w"
	errListFmt      = "failed to list grants: %w"
	msgOracleNotYet = "Warning: guild not available yet, the role change will be reported as not synced"
)

// operatorPrincipal is the actor for grant changes made from the command line.
// It holds the owner role because only owners may change grants.
func operatorPrincipal() access.Principal {
	return access.Principal{
		ID:          operatorID,
		DisplayName: operatorName,
		HasAccess:   true,
		Role:        access.RoleOwner,
	}
}

var grantCmd = &cobra.Command{
	Use:   "grant <user_id>",
	Short: "Store an access grant and assign the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAccessChange(cmd, args[0], audit.ActionGrant)
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <user_id>",
	Short: "Delete an access grant and remove the admin role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAccessChange(cmd, args[0], audit.ActionRevoke)
	},
}

var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "List stored access grants",
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

		grants, err := postgres.NewGrantRepository(db).List(cmd.Context())
		if err != nil {
			return fmt.Errorf(errListFmt, err)
		}
		return printGrants(cmd.OutOrStdout(), grants)
	},
}

func init() {
	grantCmd.Flags().Duration(flagWait, defaultWait, "How long to wait for the guild to become available")
	revokeCmd.Flags().Duration(flagWait, defaultWait, "How long to wait for the guild to become available")
}

func runAccessChange(cmd *cobra.Command, userID string, action audit.Action) error {
	if err := validator.NamedSnowflake(argUserID, userID); err != nil {
		return err
	}

	logger, err := newLogger(cmd)
	if err != nil {
		return fmt.Errorf(errBuildLoggerFmt, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf(errLoadConfigFmt, err)
	}

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf(errConnectDatabaseFmt, err)
	}
	defer db.Close()

	guild, err := discord.Open(cfg.Discord.BotToken, cfg.Access.GuildID)
	if err != nil {
		return fmt.Errorf(errOpenDiscordFmt, err)
	}
	defer guild.Close()

	ctx := cmd.Context()
	wait, _ := cmd.Flags().GetDuration(flagWait)
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	if !guild.WaitAvailable(waitCtx) {
		fmt.Fprintln(cmd.ErrOrStderr(), msgOracleNotYet)
	}

	oracle := access.NewGuildOracle(guild, cfg.Access.AdminRoleID, logger)
	resolver := access.NewResolver(oracle, postgres.NewGrantRepository(db), access.WithLogger(logger))

	var result access.ChangeResult
	if action == audit.ActionGrant {
		result, err = resolver.GrantAccess(ctx, operatorPrincipal(), userID)
	} else {
		result, err = resolver.RevokeAccess(ctx, operatorPrincipal(), userID)
	}

	auditLogger := audit.NewLogger(db.Pool)
	event := audit.NewSystemEvent(audit.ResourceTypeAccessGrant, userID, action, changeStatus(result, err))
	if err != nil {
		event.ErrorMessage = err.Error()
	} else {
		event.Metadata = map[string]any{"roleSynced": result.RoleSynced}
	}
	if logErr := auditLogger.Log(ctx, event); logErr != nil {
		logger.Warn("audit write failed", "error", logErr)
	}

	if err != nil {
		return fmt.Errorf(errChangeFmt, err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Message)
	return nil
}

func changeStatus(result access.ChangeResult, err error) audit.Status {
	switch {
	case err != nil:
		return audit.StatusFailure
	case !result.RoleSynced:
		return audit.StatusPartial
	default:
		return audit.StatusSuccess
	}
}

func printGrants(out io.Writer, grants []*grant.Grant) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tGRANTED BY\tGRANTED AT")
	for _, g := range grants {
		by := noGrantedBy
		if g.GrantedBy != nil {
			by = *g.GrantedBy
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", g.UserID, by, g.GrantedAt.UTC().Format(timeLayout))
	}
	return w.Flush()
}
