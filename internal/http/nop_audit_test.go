package http

import (
	"context"

	"github.com/labstack/echo/v4"

	"guild-dashboard/internal/audit"
)

type nopAudit struct{}

func (nopAudit) LogFromContext(echo.Context, audit.ResourceType, string, audit.Action, audit.Status, map[string]any) {
}

func (nopAudit) LogError(echo.Context, audit.ResourceType, string, audit.Action, error) {}

func (nopAudit) Query(context.Context, audit.QueryFilter) ([]*audit.Event, error) {
	return nil, nil
}
