package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"guild-dashboard/internal/access"
	"guild-dashboard/internal/audit"
	"guild-dashboard/internal/auth"
	"guild-dashboard/internal/session"
	"guild-dashboard/pkg/token"
)

type AuthHandler struct {
	login         LoginProvider
	resolver      AccessResolver
	authenticator SessionAuthenticator
	codec         *session.Codec
	cookie        session.CookieConfig
	dashboardURL  string
	auditLogger   AuditLogger
}

func NewAuthHandler(login LoginProvider, resolver AccessResolver, authenticator SessionAuthenticator, codec *session.Codec, cookie session.CookieConfig, dashboardURL string, auditLogger AuditLogger) *AuthHandler {
	return &AuthHandler{
		login:         login,
		resolver:      resolver,
		authenticator: authenticator,
		codec:         codec,
		cookie:        cookie,
		dashboardURL:  dashboardURL,
		auditLogger:   auditLogger,
	}
}

type MeResponse struct {
	access.Principal
	AuthType auth.AuthType `json:"authType"`
}

// Login starts the authorization-code flow.
func (h *AuthHandler) Login(c echo.Context) error {
	if h.login == nil {
		return respondError(c, http.StatusServiceUnavailable, msgLoginNotConfigured)
	}

	state, err := token.GenerateOAuthState()
	if err != nil {
		c.Logger().Errorf("failed to generate oauth state: %v", err)
		return respondError(c, http.StatusInternalServerError, msgLoginFailed)
	}

	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	return c.Redirect(http.StatusTemporaryRedirect, h.login.AuthCodeURL(state))
}

// Callback completes login: it identifies the user, resolves access with the
// same resolver the gate uses and issues the session cookie.
func (h *AuthHandler) Callback(c echo.Context) error {
	if h.login == nil {
		return respondError(c, http.StatusServiceUnavailable, msgLoginNotConfigured)
	}

	stateCookie, err := c.Cookie(oauthStateCookie)
	if err != nil || !auth.SecretsEqual(c.QueryParam(queryState), stateCookie.Value) {
		return respondError(c, http.StatusBadRequest, msgStateMismatch)
	}
	c.SetCookie(&http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true, Secure: h.cookie.Secure, SameSite: http.SameSiteLaxMode})

	code := c.QueryParam(queryCode)
	if code == "" {
		return respondError(c, http.StatusBadRequest, msgMissingCode)
	}

	ctx := c.Request().Context()
	identity, err := h.login.Identify(ctx, code)
	if err != nil {
		c.Logger().Warnf("login identification failed: %v", err)
		h.auditLogger.LogError(c, audit.ResourceTypeSession, "", audit.ActionLogin, err)
		return respondError(c, http.StatusUnauthorized, msgLoginFailed)
	}

	decision := h.resolver.Resolve(ctx, identity.ID)
	principal := decision.Apply(access.Principal{
		ID:          identity.ID,
		DisplayName: identity.Username,
		AvatarRef:   identity.Avatar,
	})

	tok, err := h.codec.Issue(principal)
	if err != nil {
		c.Logger().Errorf("failed to issue session: %v", err)
		return respondError(c, http.StatusInternalServerError, msgIssueSessionFailed)
	}
	c.SetCookie(session.NewCookie(h.cookie, tok))

	auth.SetPrincipal(c, principal, auth.AuthTypeSession)
	status := audit.StatusSuccess
	if !principal.HasAccess {
		status = audit.StatusDenied
	}
	h.auditLogger.LogFromContext(c, audit.ResourceTypeSession, identity.ID, audit.ActionLogin, status, map[string]any{
		"role":            principal.Role,
		"sourceAvailable": decision.SourceAvailable,
	})

	return c.Redirect(http.StatusFound, h.dashboardURL)
}

// Me returns the caller's freshly resolved principal, including principals
// without dashboard access.
func (h *AuthHandler) Me(c echo.Context) error {
	raw := auth.ExtractSessionToken(c)
	if raw == "" {
		return respondError(c, http.StatusUnauthorized, msgNotLoggedIn)
	}

	claims, err := h.codec.Verify(raw)
	if err != nil {
		return respondError(c, http.StatusUnauthorized, msgInvalidSession)
	}

	principal, authType, _ := h.authenticator.Authenticate(c, claims)
	return c.JSON(http.StatusOK, MeResponse{Principal: principal, AuthType: authType})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	if raw := auth.ExtractSessionToken(c); raw != "" {
		if claims, err := h.codec.Verify(raw); err == nil {
			auth.SetPrincipal(c, claims.Principal(), auth.AuthTypeSession)
			h.auditLogger.LogFromContext(c, audit.ResourceTypeSession, claims.Subject, audit.ActionLogout, audit.StatusSuccess, nil)
		}
	}

	c.SetCookie(session.ClearCookie(h.cookie))
	return respondMessage(c, http.StatusOK, msgLoggedOut)
}
