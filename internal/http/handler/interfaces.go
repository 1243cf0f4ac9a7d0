package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"guild-dashboard/internal/access"
	"guild-dashboard/internal/audit"
	"guild-dashboard/internal/auth"
	"guild-dashboard/internal/discord"
	"guild-dashboard/internal/domain/grant"
	"guild-dashboard/internal/session"
)

// Consumer-side interfaces defined by handlers

// AuthHandler interfaces
type LoginProvider interface {
	AuthCodeURL(state string) string
	Identify(ctx context.Context, code string) (*discord.Identity, error)
}

type AccessResolver interface {
	Resolve(ctx context.Context, userID string) access.Decision
}

type SessionAuthenticator interface {
	Authenticate(c echo.Context, claims *session.Claims) (access.Principal, auth.AuthType, bool)
}

// AccessHandler interfaces
type AccessManager interface {
	GrantAccess(ctx context.Context, actor access.Principal, targetID string) (access.ChangeResult, error)
	RevokeAccess(ctx context.Context, actor access.Principal, targetID string) (access.ChangeResult, error)
	ListGrants(ctx context.Context) ([]*grant.Grant, error)
}

// AuditLogger is implemented by audit.Logger.
type AuditLogger interface {
	LogFromContext(c echo.Context, resourceType audit.ResourceType, resourceID string, action audit.Action, status audit.Status, metadata map[string]any)
	LogError(c echo.Context, resourceType audit.ResourceType, resourceID string, action audit.Action, err error)
	Query(ctx context.Context, filter audit.QueryFilter) ([]*audit.Event, error)
}

// SearchHandler interfaces
type MemberSearcher interface {
	SearchMembers(ctx context.Context, query string, limit int) []discord.MemberSummary
}
