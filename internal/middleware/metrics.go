package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"webhook-relay-go/internal/metrics"
)

// MetricsMiddleware counts and times every inbound request, labelled by
// method, final status and route. Routes outside the set known to m are
// reported as "other".
func MetricsMiddleware(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			err := next(c)
			elapsed := time.Since(start)

			req := c.Request()
			labels := []string{
				metrics.NormalizeMethod(req.Method),
				strconv.Itoa(responseStatus(c, err)),
				m.NormalizePath(req.URL.Path),
			}
			m.RequestsTotal.WithLabelValues(labels...).Inc()
			m.RequestDuration.WithLabelValues(labels...).Observe(elapsed.Seconds())

			return err
		}
	}
}

// responseStatus reports the status the caller will see. Errors from
// BodyLimit or RateLimiter are rendered after this middleware returns, so
// their code has to be read off the error.
func responseStatus(c echo.Context, err error) int {
	var he *echo.HTTPError
	if err != nil && errors.As(err, &he) {
		return he.Code
	}
	return c.Response().Status
}
