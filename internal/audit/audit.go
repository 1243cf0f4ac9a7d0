package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"

	"guild-dashboard/internal/auth"
	"guild-dashboard/pkg/logger"
)

// ActorType represents the type of entity performing an action
type ActorType string

const (
	ActorTypeUser    ActorType = "user"
	ActorTypeService ActorType = "service"
	ActorTypeSystem  ActorType = "system"
)

// ResourceType represents the type of resource being acted upon
type ResourceType string

const (
	ResourceTypeAccessGrant ResourceType = "access_grant"
	ResourceTypeSession     ResourceType = "session"
)

type Action string

const (
	ActionGrant  Action = "grant"
	ActionRevoke Action = "revoke"
	ActionLogin  Action = "login"
	ActionLogout Action = "logout"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
	StatusDenied  Status = "denied"
)

const (
	logTimeout       = 2 * time.Second
	defaultListLimit = 100
	errAuditFailed   = "audit log failed: %v"
	errMarshalFmt    = "failed to marshal audit metadata: %w"
)

type Event struct {
	ID           uuid.UUID      `json:"id"`
	EventType    string         `json:"eventType"`
	ActorType    ActorType      `json:"actorType"`
	ActorID      *string        `json:"actorId,omitempty"`
	ResourceType ResourceType   `json:"resourceType"`
	ResourceID   *string        `json:"resourceId,omitempty"`
	Action       Action         `json:"action"`
	Status       Status         `json:"status"`
	IPAddress    string         `json:"ipAddress,omitempty"`
	UserAgent    string         `json:"userAgent,omitempty"`
	RequestID    string         `json:"requestId,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// DB is the subset of pgxpool.Pool the audit log uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Logger writes audit events. Writes triggered from requests run in the
// background and never fail the request.
type Logger struct {
	db DB
	wg sync.WaitGroup
}

func NewLogger(db DB) *Logger {
	return &Logger{db: db}
}

func (l *Logger) Log(ctx context.Context, event *Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	var metadataJSON []byte
	if event.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(logger.SanitizeMap(event.Metadata))
		if err != nil {
			return fmt.Errorf(errMarshalFmt, err)
		}
	}

	query := `
		INSERT INTO audit_events (
			id, event_type, actor_type, actor_id, resource_type, resource_id,
			action, status, ip_address, user_agent, request_id, metadata, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := l.db.Exec(ctx, query,
		event.ID,
		event.EventType,
		event.ActorType,
		event.ActorID,
		event.ResourceType,
		event.ResourceID,
		event.Action,
		event.Status,
		event.IPAddress,
		event.UserAgent,
		event.RequestID,
		metadataJSON,
		event.ErrorMessage,
		event.CreatedAt,
	)

	return err
}

// LogFromContext records an event for the request's principal asynchronously.
func (l *Logger) LogFromContext(c echo.Context, resourceType ResourceType, resourceID string, action Action, status Status, metadata map[string]any) {
	event := eventFromContext(c, resourceType, resourceID, action, status)
	event.Metadata = metadata
	l.logAsync(c, event)
}

// LogError records a failed action asynchronously.
func (l *Logger) LogError(c echo.Context, resourceType ResourceType, resourceID string, action Action, err error) {
	event := eventFromContext(c, resourceType, resourceID, action, StatusFailure)
	event.ErrorMessage = err.Error()
	l.logAsync(c, event)
}

// Wait blocks until background writes have finished.
func (l *Logger) Wait() {
	l.wg.Wait()
}

func (l *Logger) logAsync(c echo.Context, event *Event) {
	echoLogger := c.Logger()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), logTimeout)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer cancel()
		if err := l.Log(ctx, event); err != nil {
			echoLogger.Errorf(errAuditFailed, err)
		}
	}()
}

// NewSystemEvent builds an event for actions taken outside a request, such as
// operator commands.
func NewSystemEvent(resourceType ResourceType, resourceID string, action Action, status Status) *Event {
	event := &Event{
		EventType:    string(action) + "_" + string(resourceType),
		ActorType:    ActorTypeSystem,
		ResourceType: resourceType,
		Action:       action,
		Status:       status,
	}
	if resourceID != "" {
		event.ResourceID = &resourceID
	}
	return event
}

func eventFromContext(c echo.Context, resourceType ResourceType, resourceID string, action Action, status Status) *Event {
	event := NewSystemEvent(resourceType, resourceID, action, status)
	event.IPAddress = c.RealIP()
	event.UserAgent = c.Request().UserAgent()
	event.RequestID = c.Response().Header().Get(echo.HeaderXRequestID)

	if p, err := auth.GetPrincipal(c); err == nil {
		id := p.ID
		event.ActorID = &id
		event.ActorType = ActorTypeUser
		if auth.GetAuthType(c) == auth.AuthTypeService {
			event.ActorType = ActorTypeService
		}
	}

	return event
}

type QueryFilter struct {
	ActorID    *string
	ResourceID *string
	Action     *Action
	Status     *Status
	StartTime  *time.Time
	Limit      int
}

func (l *Logger) Query(ctx context.Context, filter QueryFilter) ([]*Event, error) {
	query := `
		SELECT id, event_type, actor_type, actor_id, resource_type, resource_id,
		       action, status, ip_address, user_agent, request_id, metadata, error_message, created_at
		FROM audit_events
		WHERE 1=1
	`
	args := []any{}
	argCount := 1

	if filter.ActorID != nil {
		query += fmt.Sprintf(" AND actor_id = $%d", argCount)
		args = append(args, *filter.ActorID)
		argCount++
	}

	if filter.ResourceID != nil {
		query += fmt.Sprintf(" AND resource_id = $%d", argCount)
		args = append(args, *filter.ResourceID)
		argCount++
	}

	if filter.Action != nil {
		query += fmt.Sprintf(" AND action = $%d", argCount)
		args = append(args, *filter.Action)
		argCount++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, *filter.Status)
		argCount++
	}

	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argCount)
		args = append(args, *filter.StartTime)
		argCount++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argCount)
	args = append(args, limit)

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		event := &Event{}
		var metadataJSON []byte
		var ip, ua, reqID, errMsg *string

		err := rows.Scan(
			&event.ID,
			&event.EventType,
			&event.ActorType,
			&event.ActorID,
			&event.ResourceType,
			&event.ResourceID,
			&event.Action,
			&event.Status,
			&ip,
			&ua,
			&reqID,
			&metadataJSON,
			&errMsg,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		event.IPAddress = deref(ip)
		event.UserAgent = deref(ua)
		event.RequestID = deref(reqID)
		event.ErrorMessage = deref(errMsg)

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, err
			}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
