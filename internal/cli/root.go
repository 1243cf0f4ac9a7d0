// Package cli is the command tree of the dashboard binary.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"

	logFormatJSON = "json"
	logFormatText = "text"

	errUnknownLogLevelFmt  = "unknown log level %q"
	errUnknownLogFormatFmt = "unknown log format %q"
)

var rootCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Guild moderation dashboard backend",
	Long: `Serves the dashboard API and its access gate, and provides operator
commands for the schema and the access grant list.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String(flagLogLevel, "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String(flagLogFormat, logFormatText, "Log format: text or json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(grantCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(grantsCmd)
}

// ExecuteContext runs the root command with ctx, which is cancelled on shutdown signals.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// newLogger builds the structured logger handed to the access core.
func newLogger(cmd *cobra.Command) (*slog.Logger, error) {
	levelName, _ := cmd.Flags().GetString(flagLogLevel)
	format, _ := cmd.Flags().GetString(flagLogFormat)

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(levelName))); err != nil {
		return nil, fmt.Errorf(errUnknownLogLevelFmt, levelName)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch format {
	case logFormatJSON:
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case logFormatText:
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf(errUnknownLogFormatFmt, format)
	}
}
