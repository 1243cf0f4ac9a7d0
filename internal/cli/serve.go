package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	stdhttp "net/http"
	"time"

	"github.com/spf13/cobra"

	"guild-dashboard/internal/access"
	"guild-dashboard/internal/audit"
	"guild-dashboard/internal/auth"
	"guild-dashboard/internal/config"
	"guild-dashboard/internal/discord"
	"guild-dashboard/internal/http"
	"guild-dashboard/internal/http/handler"
	"guild-dashboard/internal/metrics"
	"guild-dashboard/internal/repository/postgres"
	"guild-dashboard/internal/session"
	"guild-dashboard/pkg/profiling"
)

const (
	flagMigrate            = "migrate"
	flagPprofAddr          = "pprof-addr"
	serverAddrPrefix       = ":"
	oracleProbeInterval    = 15 * time.Second
	errLoadConfigFmt       = "failed to load configuration: %w"
	errConnectDatabaseFmt  = "failed to connect to database: %w"
	errPrepareSchemaFmt    = "database schema not ready: %w"
	errOpenDiscordFmt      = "failed to connect to discord: %w"
	errServerFmt           = "server error: %w"
	errServerShutdownFmt   = "server forced to shutdown: %w"
	errBuildLoggerFmt      = "failed to build logger: %w"
	msgOracleProbeStarting = "oracle availability probe started"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Bool(flagMigrate, false, "Apply the schema before serving")
	serveCmd.Flags().String(flagPprofAddr, "", "Serve pprof on this address, e.g. 127.0.0.1:6060 (disabled when empty)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	logger, err := newLogger(cmd)
	if err != nil {
		return fmt.Errorf(errBuildLoggerFmt, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf(errLoadConfigFmt, err)
	}
	log.Println("Configuration loaded successfully")

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf(errConnectDatabaseFmt, err)
	}
	defer db.Close()

	if migrate, _ := cmd.Flags().GetBool(flagMigrate); migrate {
		err = db.Migrate(ctx)
	} else {
		err = db.VerifyTables(ctx)
	}
	if err != nil {
		return fmt.Errorf(errPrepareSchemaFmt, err)
	}
	log.Println("Database connection established")

	guild, err := discord.Open(cfg.Discord.BotToken, cfg.Access.GuildID)
	if err != nil {
		return fmt.Errorf(errOpenDiscordFmt, err)
	}
	defer guild.Close()
	log.Println("Discord gateway connected")

	reg, m := metrics.NewRegistry()

	oracle := access.NewGuildOracle(guild, cfg.Access.AdminRoleID, logger)
	grants := postgres.NewGrantRepository(db)
	roleSync := access.NewRoleSync(oracle, grants, access.WithSyncLogger(logger), access.WithSyncRecorder(m))
	resolver := access.NewResolver(oracle, grants,
		access.WithHealer(roleSync),
		access.WithCache(access.NewDecisionCache(cfg.Access.CacheSize, cfg.Access.CacheTTL)),
		access.WithLogger(logger),
		access.WithRecorder(m),
	)

	codec := session.NewCodec(cfg.Session.Secret, cfg.Session.TTL)
	gate := auth.NewMiddleware(codec, resolver, auth.Config{
		APISecret:      cfg.Access.APISecret,
		PublicPrefixes: cfg.Access.PublicPathPrefixes,
		Cookie: session.CookieConfig{
			Secure: cfg.Session.CookieSecure,
			Domain: cfg.Session.CookieDomain,
			TTL:    codec.TTL(),
		},
	}, m)
	if cfg.Access.APISecret == "" {
		log.Println("Warning: API_SECRET is not set, requests without a session will fail with a configuration error")
	}

	auditLogger := audit.NewLogger(db.Pool)

	var login handler.LoginProvider
	if cfg.Discord.OAuthEnabled() {
		login = discord.NewOAuth(cfg.Discord.ClientID, cfg.Discord.ClientSecret, cfg.Discord.RedirectURL)
	} else {
		log.Println("Warning: Discord OAuth is not configured, browser login is disabled")
	}

	server := http.NewServer(&http.ServerDependencies{
		Config:         cfg,
		DB:             db,
		Oracle:         oracle,
		Resolver:       resolver,
		Codec:          codec,
		Gate:           gate,
		Login:          login,
		Members:        guild,
		AuditLogger:    auditLogger,
		Metrics:        m,
		MetricsHandler: metrics.HandlerFor(reg),
	})

	probeCtx, stopProbe := context.WithCancel(ctx)
	defer stopProbe()
	go probeOracle(probeCtx, oracle, m)

	if pprofAddr, _ := cmd.Flags().GetString(flagPprofAddr); pprofAddr != "" {
		debug := profiling.New()
		defer debug.Close()
		go func() {
			log.Printf("pprof listening on %s", pprofAddr)
			if err := debug.Start(pprofAddr); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				log.Printf("pprof server error: %v", err)
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		addr := serverAddrPrefix + cfg.Server.Port
		log.Printf("Server starting on %s", addr)
		if err := server.Start(addr); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf(errServerFmt, err)
	case <-ctx.Done():
	}

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf(errServerShutdownFmt, err)
	}

	roleSync.Wait()
	auditLogger.Wait()

	log.Println("Server exited")
	return nil
}

// probeOracle keeps the availability gauge current between readiness checks.
func probeOracle(ctx context.Context, oracle access.Oracle, m *metrics.Metrics) {
	log.Println(msgOracleProbeStarting)
	ticker := time.NewTicker(oracleProbeInterval)
	defer ticker.Stop()

	for {
		m.SetOracleAvailable(oracle.Available(ctx))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
