package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guild-dashboard/internal/access"
)

func TestRecorders(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Resolution(access.RoleAdmin, true, false)
	m.Resolution(access.RoleAdmin, true, false)
	m.Resolution(access.RoleUser, false, false)
	m.StoreFailure()
	m.SelfHeal(true)
	m.SelfHeal(false)
	m.GateOutcome("forbidden")
	m.SessionRefreshed()
	m.SetOracleAvailable(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("admin", "true", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("user", "false", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SelfHeals.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateOutcomes.WithLabelValues("forbidden")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionRefreshes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OracleAvailability))
}

func TestMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/fail", func(c echo.Context) error { return echo.NewHTTPError(http.StatusTeapot, "no") })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	for _, path := range []string{"/ok", "/ok", "/fail", "/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/ok", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/fail", "418")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/boom", "500")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.HTTPInFlight))
}

func TestHandlerFor(t *testing.T) {
	reg, m := NewRegistry()
	m.SessionRefreshed()

	rec := httptest.NewRecorder()
	HandlerFor(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "dashboard_session_refreshes_total 1"))
	assert.Contains(t, body, "go_goroutines")
}
