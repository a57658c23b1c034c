package handler

import (
	"github.com/labstack/echo/v4"

	"webhook-relay-go/internal/config"
	"webhook-relay-go/internal/metrics"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, relay *RelayHandler, health *HealthHandler) {
	e.GET(config.HealthzPath, health.Healthz)
	e.GET(config.StatusPath, health.Status)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(m.Handler()))
	}

	e.Any(cfg.Server.RelayPath, relay.Handle)
}
