package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

func TestCORSHeaders(t *testing.T) {
	const origin = "https://app.example.com"

	tests := []struct {
		name       string
		handler    echo.HandlerFunc
		body       string
		wantStatus int
	}{
		{
			name:       "handler reply",
			handler:    func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
			wantStatus: http.StatusOK,
		},
		{
			name: "error returned to echo",
			handler: func(c echo.Context) error {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "busy")
			},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "rejected by body limit",
			handler:    func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
			body:       "larger than four bytes",
			wantStatus: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(CORSHeaders(origin))
			e.Use(echomw.BodyLimit("4B"))
			e.POST("/relay", tt.handler)

			req := httptest.NewRequest(http.MethodPost, "/relay", http.NoBody)
			if tt.body != "" {
				req = httptest.NewRequest(http.MethodPost, "/relay", strings.NewReader(tt.body))
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if v := rec.Header().Get("Access-Control-Allow-Origin"); v != origin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", v, origin)
			}
			if v := rec.Header().Get("Access-Control-Allow-Methods"); v != "GET, POST, OPTIONS" {
				t.Errorf("Access-Control-Allow-Methods = %q", v)
			}
			if v := rec.Header().Get("Access-Control-Allow-Headers"); v != "Content-Type, Authorization" {
				t.Errorf("Access-Control-Allow-Headers = %q", v)
			}
		})
	}
}
