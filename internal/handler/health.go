package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"webhook-relay-go/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	forwarder *service.Forwarder
	version   Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(f *service.Forwarder, v Version) *HealthHandler {
	return &HealthHandler{forwarder: f, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status reports the relay's destination. The bearer token itself is never
// exposed, only whether one is set.
func (h *HealthHandler) Status(c echo.Context) error {
	dest := h.forwarder.Destination()
	status := "ok"
	if dest == "" {
		status = "unconfigured"
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":             status,
		"version":            string(h.version),
		"destination":        dest,
		"api_key_configured": h.forwarder.HasAPIKey(),
	})
}
