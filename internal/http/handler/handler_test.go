package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-dashboard/internal/access"
	"guild-dashboard/internal/access/accesstest"
	"guild-dashboard/internal/audit"
	"guild-dashboard/internal/auth"
	"guild-dashboard/internal/discord"
	"guild-dashboard/internal/domain/grant"
	"guild-dashboard/internal/http/middleware"
	"guild-dashboard/internal/session"
)

const (
	testSecret = "k8Zq2mX9vR4tL7wP1nB6cY3hJ5dF0gSaQeUo"
	ownerID    = "100000000000000001"
	roleID     = "900000000000000001"
	userID     = "200000000000000001"
	otherID    = "300000000000000001"
)

type auditCall struct {
	resourceID string
	action     audit.Action
	status     audit.Status
}

type fakeAudit struct {
	mu     sync.Mutex
	calls  []auditCall
	events []*audit.Event
	filter audit.QueryFilter
}

func (a *fakeAudit) LogFromContext(_ echo.Context, _ audit.ResourceType, resourceID string, action audit.Action, status audit.Status, _ map[string]any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, auditCall{resourceID, action, status})
}

func (a *fakeAudit) LogError(_ echo.Context, _ audit.ResourceType, resourceID string, action audit.Action, _ error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, auditCall{resourceID, action, audit.StatusFailure})
}

func (a *fakeAudit) Query(_ context.Context, filter audit.QueryFilter) ([]*audit.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter = filter
	return a.events, nil
}

func (a *fakeAudit) last() auditCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.calls) == 0 {
		return auditCall{}
	}
	return a.calls[len(a.calls)-1]
}

type fakeLogin struct {
	identity *discord.Identity
	err      error
}

func (l *fakeLogin) AuthCodeURL(state string) string {
	return "https://discord.test/authorize?state=" + state
}

func (l *fakeLogin) Identify(context.Context, string) (*discord.Identity, error) {
	return l.identity, l.err
}

type fakeSearcher struct {
	members []discord.MemberSummary
}

func (s *fakeSearcher) SearchMembers(_ context.Context, _ string, limit int) []discord.MemberSummary {
	if len(s.members) > limit {
		return s.members[:limit]
	}
	return s.members
}

type fixture struct {
	e        *echo.Echo
	guilds   *accesstest.Guilds
	store    *accesstest.Store
	resolver *access.Resolver
	codec    *session.Codec
	gate     *auth.Middleware
	audit    *fakeAudit
	cookie   session.CookieConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		e:      echo.New(),
		guilds: accesstest.NewGuilds(ownerID),
		store:  accesstest.NewStore(),
		codec:  session.NewCodec(testSecret, time.Hour),
		audit:  &fakeAudit{},
		cookie: session.CookieConfig{TTL: time.Hour},
	}
	oracle := access.NewGuildOracle(f.guilds, roleID, logger)
	roleSync := access.NewRoleSync(oracle, f.store, access.WithSyncLogger(logger))
	f.resolver = access.NewResolver(oracle, f.store, access.WithHealer(roleSync), access.WithLogger(logger))
	f.gate = auth.NewMiddleware(f.codec, f.resolver, auth.Config{APISecret: "svc", Cookie: f.cookie}, nil)
	t.Cleanup(roleSync.Wait)
	return f
}

func (f *fixture) context(req *http.Request, p *access.Principal) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	if p != nil {
		auth.SetPrincipal(c, *p, auth.AuthTypeSession)
	}
	return c, rec
}

func (f *fixture) accessHandler() *AccessHandler {
	return NewAccessHandler(f.resolver, f.audit)
}

func (f *fixture) authHandler(login LoginProvider) *AuthHandler {
	return NewAuthHandler(login, f.resolver, f.gate, f.codec, f.cookie, "https://dash.test/", f.audit)
}

func ownerPrincipal() *access.Principal {
	return &access.Principal{ID: ownerID, DisplayName: "owner", HasAccess: true, Role: access.RoleOwner}
}

func adminPrincipal() *access.Principal {
	return &access.Principal{ID: otherID, DisplayName: "admin", HasAccess: true, Role: access.RoleAdmin}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return c
		}
	}
	return nil
}

func TestAccessHandler_Grant(t *testing.T) {
	f := newFixture(t)
	f.guilds.AddMember(userID)

	c, rec := f.context(jsonRequest(http.MethodPost, "/api/access/grants", `{"user_id":"`+userID+`"}`), ownerPrincipal())
	require.NoError(t, f.accessHandler().Grant(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	result := decode[access.ChangeResult](t, rec)
	assert.True(t, result.Stored)
	assert.True(t, result.RoleSynced)
	assert.True(t, f.store.Has(userID))
	assert.True(t, f.guilds.HasRole(userID, roleID))
	assert.Equal(t, auditCall{userID, audit.ActionGrant, audit.StatusSuccess}, f.audit.last())
}

func TestAccessHandler_GrantPartialWhenRoleFails(t *testing.T) {
	f := newFixture(t)
	f.guilds.RoleErr = accesstest.ErrInjected

	c, rec := f.context(jsonRequest(http.MethodPost, "/api/access/grants", `{"user_id":"`+userID+`"}`), ownerPrincipal())
	require.NoError(t, f.accessHandler().Grant(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	result := decode[access.ChangeResult](t, rec)
	assert.True(t, result.Stored)
	assert.False(t, result.RoleSynced)
	assert.NotEmpty(t, result.Message)
	assert.Equal(t, audit.StatusPartial, f.audit.last().status)
}

func TestAccessHandler_GrantRejects(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		actor  *access.Principal
		status int
	}{
		{"non-owner", `{"user_id":"` + userID + `"}`, adminPrincipal(), http.StatusForbidden},
		{"invalid id", `{"user_id":"abc"}`, ownerPrincipal(), http.StatusBadRequest},
		{"unknown field", `{"user_id":"` + userID + `","role":"owner"}`, ownerPrincipal(), http.StatusBadRequest},
		{"owner targets self", `{"user_id":"` + ownerID + `"}`, ownerPrincipal(), http.StatusBadRequest},
		{"no principal", `{"user_id":"` + userID + `"}`, nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c, rec := f.context(jsonRequest(http.MethodPost, "/api/access/grants", tt.body), tt.actor)
			require.NoError(t, f.accessHandler().Grant(c))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, 0, f.store.Len())
		})
	}
}

func TestAccessHandler_ErrorCarriesRequestID(t *testing.T) {
	f := newFixture(t)
	c, rec := f.context(jsonRequest(http.MethodPost, "/api/access/grants", `{"user_id":"abc"}`), ownerPrincipal())
	c.Set(middleware.RequestIDContextKey, "req-123")

	require.NoError(t, f.accessHandler().Grant(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]string](t, rec)
	assert.NotEmpty(t, body["error"])
	assert.Equal(t, "req-123", body["request_id"])
}

func TestAccessHandler_GrantForbiddenIsAudited(t *testing.T) {
	f := newFixture(t)
	c, _ := f.context(jsonRequest(http.MethodPost, "/api/access/grants", `{"user_id":"`+userID+`"}`), adminPrincipal())
	require.NoError(t, f.accessHandler().Grant(c))
	assert.Equal(t, auditCall{userID, audit.ActionGrant, audit.StatusDenied}, f.audit.last())
}

func TestAccessHandler_GrantStoreFailure(t *testing.T) {
	f := newFixture(t)
	f.store.SetErr(accesstest.ErrInjected)

	c, rec := f.context(jsonRequest(http.MethodPost, "/api/access/grants", `{"user_id":"`+userID+`"}`), ownerPrincipal())
	require.NoError(t, f.accessHandler().Grant(c))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), accesstest.ErrInjected.Error())
	assert.Equal(t, audit.StatusFailure, f.audit.last().status)
	assert.Empty(t, f.guilds.AddCalls)
}

func TestAccessHandler_Revoke(t *testing.T) {
	f := newFixture(t)
	f.guilds.AddMember(userID, roleID)
	require.NoError(t, f.store.Grant(context.Background(), grantInput(userID)))

	c, rec := f.context(httptest.NewRequest(http.MethodDelete, "/api/access/grants/"+userID, nil), ownerPrincipal())
	c.SetParamNames(paramUserID)
	c.SetParamValues(userID)
	require.NoError(t, f.accessHandler().Revoke(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.store.Has(userID))
	assert.False(t, f.guilds.HasRole(userID, roleID))
	assert.Equal(t, auditCall{userID, audit.ActionRevoke, audit.StatusSuccess}, f.audit.last())
	assert.Equal(t, access.RoleUser, f.resolver.Resolve(context.Background(), userID).Role)
}

func TestAccessHandler_ListGrants(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Grant(context.Background(), grantInput(userID)))
	require.NoError(t, f.store.Grant(context.Background(), grantInput(otherID)))

	c, rec := f.context(httptest.NewRequest(http.MethodGet, "/api/access/grants", nil), ownerPrincipal())
	require.NoError(t, f.accessHandler().ListGrants(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	grants := decode[[]GrantResponse](t, rec)
	require.Len(t, grants, 2)
	assert.Equal(t, userID, grants[0].UserID)
	require.NotNil(t, grants[0].GrantedBy)
	assert.Equal(t, ownerID, *grants[0].GrantedBy)
}

func TestAccessHandler_Check(t *testing.T) {
	f := newFixture(t)
	c, rec := f.context(httptest.NewRequest(http.MethodGet, "/api/access/check", nil), adminPrincipal())
	require.NoError(t, f.accessHandler().Check(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	got := decode[CheckResponse](t, rec)
	assert.Equal(t, otherID, got.ID)
	assert.Equal(t, access.RoleAdmin, got.Role)
	assert.Equal(t, auth.AuthTypeSession, got.AuthType)
}

func TestAccessHandler_AuditLog(t *testing.T) {
	f := newFixture(t)
	f.audit.events = []*audit.Event{{Action: audit.ActionGrant, Status: audit.StatusSuccess}}

	c, rec := f.context(httptest.NewRequest(http.MethodGet, "/api/access/audit?limit=9999&user_id="+userID, nil), ownerPrincipal())
	require.NoError(t, f.accessHandler().AuditLog(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxAuditLimit, f.audit.filter.Limit)
	require.NotNil(t, f.audit.filter.ResourceID)
	assert.Equal(t, userID, *f.audit.filter.ResourceID)

	c, rec = f.context(httptest.NewRequest(http.MethodGet, "/api/access/audit?limit=-1", nil), ownerPrincipal())
	require.NoError(t, f.accessHandler().AuditLog(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthHandler_LoginNotConfigured(t *testing.T) {
	f := newFixture(t)
	c, rec := f.context(httptest.NewRequest(http.MethodGet, "/api/auth/login", nil), nil)
	require.NoError(t, f.authHandler(nil).Login(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthHandler_LoginRedirects(t *testing.T) {
	f := newFixture(t)
	c, rec := f.context(httptest.NewRequest(http.MethodGet, "/api/auth/login", nil), nil)
	require.NoError(t, f.authHandler(&fakeLogin{}).Login(c))

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	var state string
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == oauthStateCookie {
			state = ck.Value
		}
	}
	require.NotEmpty(t, state)
	assert.Equal(t, "https://discord.test/authorize?state="+state, rec.Header().Get(echo.HeaderLocation))
}

func callbackRequest(state, cookieState, code string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/auth/callback?state="+state+"&code="+code, nil)
	if cookieState != "" {
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: cookieState})
	}
	return req
}

func TestAuthHandler_CallbackIssuesResolvedSession(t *testing.T) {
	f := newFixture(t)
	f.guilds.AddMember(userID)
	require.NoError(t, f.store.Grant(context.Background(), grantInput(userID)))
	login := &fakeLogin{identity: &discord.Identity{ID: userID, Username: "mod", Avatar: "abc"}}

	c, rec := f.context(callbackRequest("st4te", "st4te", "code"), nil)
	require.NoError(t, f.authHandler(login).Callback(c))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://dash.test/", rec.Header().Get(echo.HeaderLocation))

	ck := sessionCookie(rec)
	require.NotNil(t, ck)
	claims, err := f.codec.Verify(ck.Value)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.Subject)
	assert.Equal(t, "mod", claims.Username)
	assert.Equal(t, access.RoleAdmin, claims.Role)
	assert.True(t, claims.HasAccess)
	assert.Equal(t, auditCall{userID, audit.ActionLogin, audit.StatusSuccess}, f.audit.last())
}

func TestAuthHandler_CallbackWithoutAccessStillLogsIn(t *testing.T) {
	f := newFixture(t)
	login := &fakeLogin{identity: &discord.Identity{ID: userID, Username: "visitor"}}

	c, rec := f.context(callbackRequest("s", "s", "code"), nil)
	require.NoError(t, f.authHandler(login).Callback(c))

	assert.Equal(t, http.StatusFound, rec.Code)
	claims, err := f.codec.Verify(sessionCookie(rec).Value)
	require.NoError(t, err)
	assert.Equal(t, access.RoleUser, claims.Role)
	assert.False(t, claims.HasAccess)
	assert.Equal(t, audit.StatusDenied, f.audit.last().status)
}

func TestAuthHandler_CallbackRejects(t *testing.T) {
	tests := []struct {
		name   string
		req    *http.Request
		login  *fakeLogin
		status int
	}{
		{"state mismatch", callbackRequest("a", "b", "code"), &fakeLogin{}, http.StatusBadRequest},
		{"missing state cookie", callbackRequest("a", "", "code"), &fakeLogin{}, http.StatusBadRequest},
		{"missing code", callbackRequest("a", "a", ""), &fakeLogin{}, http.StatusBadRequest},
		{"exchange failure", callbackRequest("a", "a", "code"), &fakeLogin{err: errors.New("bad code")}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			c, rec := f.context(tt.req, nil)
			require.NoError(t, f.authHandler(tt.login).Callback(c))
			assert.Equal(t, tt.status, rec.Code)
			assert.Nil(t, sessionCookie(rec))
		})
	}
}

func TestAuthHandler_Me(t *testing.T) {
	f := newFixture(t)
	f.guilds.AddMember(userID, roleID)

	c, rec := f.context(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), nil)
	require.NoError(t, f.authHandler(nil).Me(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The token predates the role; /me reports the live answer and refreshes.
	tok, err := f.codec.Issue(access.Principal{ID: userID, DisplayName: "mod", Role: access.RoleUser})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)

	c, rec = f.context(req, nil)
	require.NoError(t, f.authHandler(nil).Me(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	me := decode[MeResponse](t, rec)
	assert.Equal(t, userID, me.ID)
	assert.Equal(t, "mod", me.DisplayName)
	assert.Equal(t, access.RoleAdmin, me.Role)
	assert.True(t, me.HasAccess)
	assert.NotNil(t, sessionCookie(rec))
}

func TestAuthHandler_MeInvalidToken(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-token")

	c, rec := f.context(req, nil)
	require.NoError(t, f.authHandler(nil).Me(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	f := newFixture(t)
	tok, err := f.codec.Issue(access.Principal{ID: userID, DisplayName: "mod", Role: access.RoleUser})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: tok})

	c, rec := f.context(req, nil)
	require.NoError(t, f.authHandler(nil).Logout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	ck := sessionCookie(rec)
	require.NotNil(t, ck)
	assert.Empty(t, ck.Value)
	assert.Less(t, ck.MaxAge, 0)
	assert.Equal(t, auditCall{userID, audit.ActionLogout, audit.StatusSuccess}, f.audit.last())
}

func TestSearchHandler_Members(t *testing.T) {
	f := newFixture(t)

	c, rec := f.context(httptest.NewRequest(http.MethodGet, "/api/search/members?q=mo", nil), nil)
	require.NoError(t, NewSearchHandler(nil).Members(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	searcher := &fakeSearcher{members: []discord.MemberSummary{{ID: userID, DisplayName: "mod"}}}
	c, rec = f.context(httptest.NewRequest(http.MethodGet, "/api/search/members?q=", nil), nil)
	require.NoError(t, NewSearchHandler(searcher).Members(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = f.context(httptest.NewRequest(http.MethodGet, "/api/search/members?q=mo", nil), nil)
	require.NoError(t, NewSearchHandler(searcher).Members(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, searcher.members, decode[[]discord.MemberSummary](t, rec))
}

func grantInput(id string) grant.CreateGrantInput {
	return grant.CreateGrantInput{UserID: id, GrantedBy: ownerID}
}
