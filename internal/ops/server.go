package ops

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Kalasky/alina-bot/internal/voice"
)

// SessionSource exposes a snapshot of the captures currently in flight.
type SessionSource interface {
	Snapshot() []voice.Info
}

// New creates the operational HTTP server: health, metrics and a session
// diagnostics endpoint.
func New(src SessionSource) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/sessions", func(c echo.Context) error {
		return c.JSON(http.StatusOK, src.Snapshot())
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
