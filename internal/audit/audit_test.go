package audit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-dashboard/internal/access"
	"guild-dashboard/internal/auth"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	mu    sync.Mutex
	calls []execCall
	err   error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func newContext() echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/access/grants", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	req.Header.Set("User-Agent", "test-agent")
	rec := httptest.NewRecorder()
	rec.Header().Set(echo.HeaderXRequestID, "req-1")
	return e.NewContext(req, rec)
}

func TestLogFromContext_UserActor(t *testing.T) {
	db := &fakeDB{}
	l := NewLogger(db)
	c := newContext()
	auth.SetPrincipal(c, access.Principal{ID: "100000000000000001", Role: access.RoleOwner, HasAccess: true}, auth.AuthTypeSession)

	l.LogFromContext(c, ResourceTypeAccessGrant, "200000000000000001", ActionGrant, StatusSuccess, map[string]any{"roleSynced": true})
	l.Wait()

	require.Len(t, db.calls, 1)
	args := db.calls[0].args
	assert.Equal(t, "grant_access_grant", args[1])
	assert.Equal(t, ActorTypeUser, args[2])
	require.NotNil(t, args[3])
	assert.Equal(t, "100000000000000001", *(args[3].(*string)))
	assert.Equal(t, "200000000000000001", *(args[5].(*string)))
	assert.Equal(t, StatusSuccess, args[7])
	assert.Equal(t, "10.0.0.1", args[8])
	assert.Equal(t, "test-agent", args[9])
	assert.Equal(t, "req-1", args[10])
	assert.JSONEq(t, `{"roleSynced":true}`, string(args[11].([]byte)))
}

func TestLogFromContext_ServiceActor(t *testing.T) {
	db := &fakeDB{}
	l := NewLogger(db)
	c := newContext()
	auth.SetPrincipal(c, auth.ServicePrincipal(), auth.AuthTypeService)

	l.LogFromContext(c, ResourceTypeAccessGrant, "", ActionRevoke, StatusDenied, nil)
	l.Wait()

	require.Len(t, db.calls, 1)
	args := db.calls[0].args
	assert.Equal(t, ActorTypeService, args[2])
	assert.Nil(t, args[5].(*string))
	assert.Nil(t, args[11].([]byte))
}

func TestLogError_NoPrincipalIsSystem(t *testing.T) {
	db := &fakeDB{err: errors.New("db down")}
	l := NewLogger(db)
	c := newContext()

	l.LogError(c, ResourceTypeSession, "", ActionLogin, errors.New("exchange failed"))
	l.Wait()

	require.Len(t, db.calls, 1)
	args := db.calls[0].args
	assert.Equal(t, ActorTypeSystem, args[2])
	assert.Equal(t, StatusFailure, args[7])
	assert.Equal(t, "exchange failed", args[12])
}

func TestLog_RedactsSensitiveMetadata(t *testing.T) {
	db := &fakeDB{}
	l := NewLogger(db)

	event := NewSystemEvent(ResourceTypeSession, "200000000000000001", ActionLogin, StatusSuccess)
	event.Metadata = map[string]any{"role": "admin", "session_token": "abc"}
	require.NoError(t, l.Log(context.Background(), event))

	require.Len(t, db.calls, 1)
	args := db.calls[0].args
	assert.Equal(t, "login_session", args[1])
	assert.Equal(t, ActorTypeSystem, args[2])
	assert.JSONEq(t, `{"role":"admin","session_token":"[REDACTED]"}`, string(args[11].([]byte)))
	assert.NotEqual(t, "", event.ID.String())
	assert.False(t, event.CreatedAt.IsZero())
}
