package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"guild-dashboard/internal/access"
	"guild-dashboard/internal/session"
	apperrors "guild-dashboard/pkg/errors"
)

// Resolver is the access decision the gate consults for session principals.
type Resolver interface {
	Resolve(ctx context.Context, userID string) access.Decision
}

// Recorder receives gate outcomes for metrics.
type Recorder interface {
	GateOutcome(outcome string)
	SessionRefreshed()
}

type nopRecorder struct{}

func (nopRecorder) GateOutcome(string) {}
func (nopRecorder) SessionRefreshed()  {}

type Config struct {
	APISecret      string
	PublicPrefixes []string
	Cookie         session.CookieConfig
}

// Middleware is the request gate in front of every privileged route.
type Middleware struct {
	codec    *session.Codec
	resolver Resolver
	cfg      Config
	recorder Recorder
}

func NewMiddleware(codec *session.Codec, resolver Resolver, cfg Config, recorder Recorder) *Middleware {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Middleware{
		codec:    codec,
		resolver: resolver,
		cfg:      cfg,
		recorder: recorder,
	}
}

// Authorize attaches a resolved principal to the request or rejects it.
func (m *Middleware) Authorize() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m.isPublic(c.Request().URL.Path) {
				m.recorder.GateOutcome(OutcomePublic)
				return next(c)
			}

			if key := extractAPIKey(c); key != "" && SecretsEqual(key, m.cfg.APISecret) {
				SetPrincipal(c, ServicePrincipal(), AuthTypeService)
				m.recorder.GateOutcome(OutcomeService)
				return next(c)
			}

			token := ExtractSessionToken(c)
			if token == "" {
				if m.cfg.APISecret == "" {
					m.recorder.GateOutcome(OutcomeMisconfigured)
					c.Logger().Error(msgAuthNotConfigured)
					return respondError(c, http.StatusInternalServerError, msgAuthNotConfigured)
				}
				m.recorder.GateOutcome(OutcomeUnauthorized)
				return respondError(c, http.StatusUnauthorized, msgMissingAuthorization)
			}

			claims, err := m.codec.Verify(token)
			if err != nil {
				m.recorder.GateOutcome(OutcomeUnauthorized)
				return respondError(c, http.StatusUnauthorized, msgInvalidOrExpiredToken)
			}

			p, authType, ok := m.Authenticate(c, claims)
			if ok {
				SetPrincipal(c, p, authType)
				if authType == AuthTypeDegraded {
					m.recorder.GateOutcome(OutcomeDegraded)
				} else {
					m.recorder.GateOutcome(OutcomeGranted)
				}
				return next(c)
			}

			m.recorder.GateOutcome(OutcomeForbidden)
			return respondError(c, http.StatusForbidden, msgAccessDenied)
		}
	}
}

// Authenticate resolves live access for a verified session and refreshes the
// cookie on drift. It returns the principal to act as and whether it may use
// privileged routes. When the live source is unavailable and resolution
// denies, the token's own access claim is honored.
func (m *Middleware) Authenticate(c echo.Context, claims *session.Claims) (access.Principal, AuthType, bool) {
	// Resolve consults the grant store even when the live source is down, so a
	// stored grant outranks the token's own claim on the degraded path.
	decision := m.resolver.Resolve(c.Request().Context(), claims.Subject)
	m.refreshSession(c, claims, decision)

	if decision.HasAccess {
		return decision.Apply(claims.Principal()), AuthTypeSession, true
	}

	if !decision.SourceAvailable && claims.HasAccess {
		c.Logger().Warnf(msgDegradedSessionHonored, claims.Subject)
		return degradedPrincipal(claims), AuthTypeDegraded, true
	}

	return decision.Apply(claims.Principal()), AuthTypeSession, false
}

// RequireOwner rejects principals that are not the guild owner. Ownership is
// only established by the live source, so degraded sessions never pass.
func (m *Middleware) RequireOwner() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := GetPrincipal(c)
			if err != nil {
				return respondError(c, http.StatusUnauthorized, msgUserNotAuthenticated)
			}
			if !p.IsOwner() || GetAuthType(c) == AuthTypeDegraded {
				return respondError(c, http.StatusForbidden, msgOwnerOnly)
			}
			return next(c)
		}
	}
}

// refreshSession re-issues the session cookie when the resolution disagrees
// with the token. A denial computed without the live source is not written
// back, so the token keeps its last known claim for the degraded path.
func (m *Middleware) refreshSession(c echo.Context, claims *session.Claims, d access.Decision) {
	if !d.SourceAvailable && !d.HasAccess {
		return
	}

	token, refreshed, err := m.codec.RefreshIfDrifted(claims, d)
	if err != nil {
		c.Logger().Errorf(msgSessionRefreshFailed, err)
		return
	}
	if refreshed {
		c.SetCookie(session.NewCookie(m.cfg.Cookie, token))
		m.recorder.SessionRefreshed()
	}
}

// degradedPrincipal is the token's own principal with its role capped at
// admin. A stale owner claim cannot manage access.
func degradedPrincipal(claims *session.Claims) access.Principal {
	p := claims.Principal()
	if p.Role == access.RoleOwner {
		p.Role = access.RoleAdmin
	}
	return p
}

func (m *Middleware) isPublic(path string) bool {
	for _, prefix := range m.cfg.PublicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// ServicePrincipal is the identity attached to requests carrying the shared
// service secret.
func ServicePrincipal() access.Principal {
	return access.Principal{
		ID:          ServicePrincipalID,
		DisplayName: servicePrincipalName,
		HasAccess:   true,
		Role:        access.RoleAdmin,
	}
}

// ExtractSessionToken returns the first token found in the session cookie,
// the bearer header or the access token header.
func ExtractSessionToken(c echo.Context) string {
	if cookie, err := c.Cookie(session.CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token := extractBearerToken(c); token != "" {
		return token
	}
	return strings.TrimSpace(c.Request().Header.Get(headerAccessToken))
}

func extractBearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get(headerAuthorization)
	if authHeader == "" {
		return ""
	}

	parts := strings.Fields(authHeader)
	if len(parts) != authHeaderParts || strings.ToLower(parts[0]) != bearerScheme {
		return ""
	}

	return parts[1]
}

func extractAPIKey(c echo.Context) string {
	return strings.TrimSpace(c.Request().Header.Get(headerAPIKey))
}

func respondError(c echo.Context, status int, message string) error {
	body := map[string]string{jsonKeyError: message}
	if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		body[jsonKeyRequestID] = id
	}
	return c.JSON(status, body)
}

func SetPrincipal(c echo.Context, p access.Principal, authType AuthType) {
	c.Set(ContextKeyPrincipal, p)
	c.Set(ContextKeyAuthType, authType)
}

func GetPrincipal(c echo.Context) (access.Principal, error) {
	v := c.Get(ContextKeyPrincipal)
	if v == nil {
		return access.Principal{}, apperrors.Unauthorized(msgUserNotAuthenticated)
	}

	p, ok := v.(access.Principal)
	if !ok {
		return access.Principal{}, apperrors.InternalServer(msgInvalidPrincipalCtx, nil)
	}

	return p, nil
}

func GetAuthType(c echo.Context) AuthType {
	authType := c.Get(ContextKeyAuthType)
	if authType == nil {
		return ""
	}

	t, ok := authType.(AuthType)
	if !ok {
		return ""
	}

	return t
}
