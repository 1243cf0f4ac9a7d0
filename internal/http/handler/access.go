package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"guild-dashboard/internal/access"
	"guild-dashboard/internal/audit"
	"guild-dashboard/internal/auth"
	"guild-dashboard/internal/domain/grant"
	"guild-dashboard/pkg/validator"
)

type AccessHandler struct {
	manager     AccessManager
	auditLogger AuditLogger
}

func NewAccessHandler(manager AccessManager, auditLogger AuditLogger) *AccessHandler {
	return &AccessHandler{
		manager:     manager,
		auditLogger: auditLogger,
	}
}

type GrantAccessRequest struct {
	UserID string `json:"user_id"`
}

type GrantResponse struct {
	UserID    string    `json:"userId"`
	IsAdmin   bool      `json:"isAdmin"`
	GrantedBy *string   `json:"grantedBy,omitempty"`
	GrantedAt time.Time `json:"grantedAt"`
}

type CheckResponse struct {
	access.Principal
	AuthType auth.AuthType `json:"authType"`
}

// Check returns the principal the gate attached to the request.
func (h *AccessHandler) Check(c echo.Context) error {
	p, err := auth.GetPrincipal(c)
	if err != nil {
		return RespondWithMappedError(c, err)
	}
	return c.JSON(http.StatusOK, CheckResponse{Principal: p, AuthType: auth.GetAuthType(c)})
}

func (h *AccessHandler) ListGrants(c echo.Context) error {
	grants, err := h.manager.ListGrants(c.Request().Context())
	if err != nil {
		c.Logger().Errorf("failed to list grants: %v", err)
		return respondError(c, http.StatusInternalServerError, msgListGrantsFailed)
	}

	out := make([]GrantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, toGrantResponse(g))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *AccessHandler) Grant(c echo.Context) error {
	actor, err := auth.GetPrincipal(c)
	if err != nil {
		return RespondWithMappedError(c, err)
	}

	var req GrantAccessRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return handleHTTPError(c, err)
	}
	req.UserID = strings.TrimSpace(req.UserID)

	if err := validator.NamedSnowflake(paramUserID, req.UserID); err != nil {
		return respondError(c, http.StatusBadRequest, err.Error())
	}

	result, err := h.manager.GrantAccess(c.Request().Context(), actor, req.UserID)
	if err != nil {
		return h.changeFailed(c, req.UserID, audit.ActionGrant, err)
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeAccessGrant, req.UserID, audit.ActionGrant, changeStatus(result), map[string]any{
		"roleSynced": result.RoleSynced,
	})
	return c.JSON(http.StatusCreated, result)
}

func (h *AccessHandler) Revoke(c echo.Context) error {
	actor, err := auth.GetPrincipal(c)
	if err != nil {
		return RespondWithMappedError(c, err)
	}

	userID := strings.TrimSpace(c.Param(paramUserID))
	if err := validator.NamedSnowflake(paramUserID, userID); err != nil {
		return respondError(c, http.StatusBadRequest, err.Error())
	}

	result, err := h.manager.RevokeAccess(c.Request().Context(), actor, userID)
	if err != nil {
		return h.changeFailed(c, userID, audit.ActionRevoke, err)
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeAccessGrant, userID, audit.ActionRevoke, changeStatus(result), map[string]any{
		"roleSynced": result.RoleSynced,
	})
	return c.JSON(http.StatusOK, result)
}

// AuditLog lists recent audit events, newest first.
func (h *AccessHandler) AuditLog(c echo.Context) error {
	limit := defaultAuditLimit
	if raw := c.QueryParam(queryLimit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return respondError(c, http.StatusBadRequest, msgInvalidLimit)
		}
		limit = min(n, maxAuditLimit)
	}

	filter := audit.QueryFilter{Limit: limit}
	if target := c.QueryParam(paramUserID); target != "" {
		if err := validator.NamedSnowflake(paramUserID, target); err != nil {
			return respondError(c, http.StatusBadRequest, err.Error())
		}
		filter.ResourceID = &target
	}

	events, err := h.auditLogger.Query(c.Request().Context(), filter)
	if err != nil {
		c.Logger().Errorf("failed to query audit log: %v", err)
		return respondError(c, http.StatusInternalServerError, msgAuditQueryFailed)
	}
	return c.JSON(http.StatusOK, events)
}

func (h *AccessHandler) changeFailed(c echo.Context, userID string, action audit.Action, err error) error {
	status, msg := MapToPublicError(err)
	if status == http.StatusForbidden {
		h.auditLogger.LogFromContext(c, audit.ResourceTypeAccessGrant, userID, action, audit.StatusDenied, nil)
		return respondError(c, status, msg)
	}
	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("access change failed for %s: %v", userID, err)
		h.auditLogger.LogError(c, audit.ResourceTypeAccessGrant, userID, action, err)
		return respondError(c, http.StatusInternalServerError, msgUpdateAccessFailed)
	}
	return respondError(c, status, msg)
}

func changeStatus(result access.ChangeResult) audit.Status {
	if result.RoleSynced {
		return audit.StatusSuccess
	}
	return audit.StatusPartial
}

func toGrantResponse(g *grant.Grant) GrantResponse {
	return GrantResponse{
		UserID:    g.UserID,
		IsAdmin:   g.IsAdmin,
		GrantedBy: g.GrantedBy,
		GrantedAt: g.GrantedAt,
	}
}
