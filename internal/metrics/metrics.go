package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"guild-dashboard/internal/access"
)

const namespace = "dashboard"

// Metrics holds the Prometheus collectors of the service. It implements
// access.Recorder and auth.Recorder.
type Metrics struct {
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	HTTPInFlight       prometheus.Gauge
	Resolutions        *prometheus.CounterVec
	StoreFailures      prometheus.Counter
	SelfHeals          *prometheus.CounterVec
	GateOutcomes       *prometheus.CounterVec
	SessionRefreshes   prometheus.Counter
	OracleAvailability prometheus.Gauge
}

func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests being served",
			},
		),
		Resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_resolutions_total",
				Help:      "Access resolutions by resulting role",
			},
			[]string{"role", "source_available", "cached"},
		),
		StoreFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_store_failures_total",
				Help:      "Grant lookups that failed and were treated as no grant",
			},
		),
		SelfHeals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_self_heal_total",
				Help:      "Background role grants issued for stored grants",
			},
			[]string{"success"},
		),
		GateOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gate_outcomes_total",
				Help:      "Request gate decisions by outcome",
			},
			[]string{"outcome"},
		),
		SessionRefreshes: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_refreshes_total",
				Help:      "Session tokens re-issued after drift",
			},
		),
		OracleAvailability: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "oracle_available",
				Help:      "1 when the membership oracle has a view of the guild",
			},
		),
	}
}

// NewRegistry creates a registry with the Go and process collectors and the
// service metrics registered on it.
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, NewMetrics(reg)
}

func HandlerFor(reg prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Resolution(role access.Role, sourceAvailable bool, cached bool) {
	m.Resolutions.WithLabelValues(string(role), strconv.FormatBool(sourceAvailable), strconv.FormatBool(cached)).Inc()
}

func (m *Metrics) StoreFailure() {
	m.StoreFailures.Inc()
}

func (m *Metrics) SelfHeal(success bool) {
	m.SelfHeals.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func (m *Metrics) GateOutcome(outcome string) {
	m.GateOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionRefreshed() {
	m.SessionRefreshes.Inc()
}

func (m *Metrics) SetOracleAvailable(available bool) {
	if available {
		m.OracleAvailability.Set(1)
		return
	}
	m.OracleAvailability.Set(0)
}

// Middleware tracks request count, latency and in-flight requests per route.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.HTTPInFlight.Inc()
			defer m.HTTPInFlight.Dec()

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)

			m.HTTPRequests.WithLabelValues(method, route, status).Inc()
			m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
