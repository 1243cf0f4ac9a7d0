package http

import (
	"context"
	stdhttp "net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"

	"guild-dashboard/internal/access"
	"guild-dashboard/internal/auth"
	"guild-dashboard/internal/config"
	"guild-dashboard/internal/http/handler"
	"guild-dashboard/internal/http/middleware"
	"guild-dashboard/internal/metrics"
	"guild-dashboard/internal/session"
)

const (
	jsonKeyStatus     = "status"
	jsonKeyDatabase   = "database"
	jsonKeyOracle     = "oracle"
	statusOK          = "ok"
	statusDegraded    = "degraded"
	statusUnavailable = "unavailable"
	requestBodyLimit  = "64K"
	readinessTimeout  = 2 * time.Second
)

// Pinger reports whether the credential store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ServerDependencies struct {
	Config         *config.Config
	DB             Pinger
	Oracle         access.Oracle
	Resolver       *access.Resolver
	Codec          *session.Codec
	Gate           *auth.Middleware
	Login          handler.LoginProvider
	Members        handler.MemberSearcher
	AuditLogger    handler.AuditLogger
	Metrics        *metrics.Metrics
	MetricsHandler stdhttp.Handler
}

type Server struct {
	echo *echo.Echo
	deps *ServerDependencies
}

func NewServer(deps *ServerDependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.HTTPErrorHandler = CustomHTTPErrorHandler

	e.Server.ReadTimeout = deps.Config.Server.ReadTimeout
	e.Server.WriteTimeout = deps.Config.Server.WriteTimeout

	// Request ID first, so every log line and error body carries it.
	e.Use(middleware.RequestID())
	e.Use(middleware.SecurityHeaders())
	if deps.Metrics != nil {
		e.Use(deps.Metrics.Middleware())
	}
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.BodyLimit(requestBodyLimit))

	s := &Server{echo: e, deps: deps}

	e.GET("/health", healthCheck)
	if deps.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(deps.MetricsHandler))
	}

	cookieCfg := session.CookieConfig{
		Secure: deps.Config.Session.CookieSecure,
		Domain: deps.Config.Session.CookieDomain,
		TTL:    deps.Codec.TTL(),
	}

	authHandler := handler.NewAuthHandler(deps.Login, deps.Resolver, deps.Gate, deps.Codec, cookieCfg, deps.Config.Server.DashboardURL, deps.AuditLogger)
	accessHandler := handler.NewAccessHandler(deps.Resolver, deps.AuditLogger)
	searchHandler := handler.NewSearchHandler(deps.Members)

	globalRateLimiter := middleware.NewGlobalRateLimiter()
	strictRateLimiter := middleware.NewStrictRateLimiter()

	api := e.Group("/api")
	api.Use(deps.Gate.Authorize())
	api.Use(globalRateLimiter.Middleware())

	api.GET("/health", s.readiness)

	authGroup := api.Group("/auth", strictRateLimiter.Middleware())
	authGroup.GET("/login", authHandler.Login)
	authGroup.GET("/callback", authHandler.Callback)
	authGroup.GET("/me", authHandler.Me)
	authGroup.POST("/logout", authHandler.Logout)

	api.GET("/search/members", searchHandler.Members)

	accessGroup := api.Group("/access")
	accessGroup.GET("/check", accessHandler.Check)

	owner := accessGroup.Group("", deps.Gate.RequireOwner())
	owner.GET("/grants", accessHandler.ListGrants)
	owner.POST("/grants", accessHandler.Grant)
	owner.DELETE("/grants/:user_id", accessHandler.Revoke)
	owner.GET("/audit", accessHandler.AuditLog)

	return s
}

func (s *Server) Handler() stdhttp.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func healthCheck(c echo.Context) error {
	return c.JSON(stdhttp.StatusOK, map[string]string{
		jsonKeyStatus: statusOK,
	})
}

// readiness reports the credential store and the live oracle separately. An
// unavailable oracle is degraded service, not an outage: stored grants and
// session claims still answer.
func (s *Server) readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessTimeout)
	defer cancel()

	body := map[string]string{
		jsonKeyStatus:   statusOK,
		jsonKeyDatabase: statusOK,
		jsonKeyOracle:   statusOK,
	}
	code := stdhttp.StatusOK

	if s.deps.Oracle == nil || !s.deps.Oracle.Available(ctx) {
		body[jsonKeyOracle] = statusUnavailable
		body[jsonKeyStatus] = statusDegraded
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.SetOracleAvailable(body[jsonKeyOracle] == statusOK)
	}

	if s.deps.DB == nil || s.deps.DB.Ping(ctx) != nil {
		body[jsonKeyDatabase] = statusUnavailable
		body[jsonKeyStatus] = statusUnavailable
		code = stdhttp.StatusServiceUnavailable
	}

	return c.JSON(code, body)
}
