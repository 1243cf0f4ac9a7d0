// Package profiling serves pprof on a separate, operator-only listener.
package profiling

import (
	"net/http"
	"net/http/pprof"

	"github.com/labstack/echo/v4"
)

const routePrefix = "/debug/pprof"

// RegisterPprofRoutes adds the pprof endpoints under /debug/pprof/.
func RegisterPprofRoutes(e *echo.Echo) {
	g := e.Group(routePrefix)
	g.GET("/", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	g.GET("/cmdline", echo.WrapHandler(http.HandlerFunc(pprof.Cmdline)))
	g.GET("/profile", echo.WrapHandler(http.HandlerFunc(pprof.Profile)))
	g.GET("/symbol", echo.WrapHandler(http.HandlerFunc(pprof.Symbol)))
	g.GET("/trace", echo.WrapHandler(http.HandlerFunc(pprof.Trace)))
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		g.GET("/"+name, echo.WrapHandler(pprof.Handler(name)))
	}
}

// New returns an echo instance serving only pprof. It is meant to be bound
// to a loopback address, never to the public API listener.
func New() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	RegisterPprofRoutes(e)
	return e
}
