package middleware

import (
	"github.com/labstack/echo/v4"

	"webhook-relay-go/internal/service"
)

// CORSHeaders sets the relay's fixed CORS headers on the response before the
// rest of the chain runs. Replies produced by BodyLimit, RateLimiter or
// Echo's error handler keep them, so a browser caller sees the real status.
func CORSHeaders(origin string) echo.MiddlewareFunc {
	header := service.CORSHeader(origin)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for key, vals := range header {
				h[key] = append([]string(nil), vals...)
			}
			return next(c)
		}
	}
}
