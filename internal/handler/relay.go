package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"webhook-relay-go/internal/model"
	"webhook-relay-go/internal/service"
)

// RelayHandler exposes the Forwarder over HTTP.
type RelayHandler struct {
	forwarder *service.Forwarder
	logger    *slog.Logger
}

// NewRelayHandler creates a RelayHandler.
func NewRelayHandler(f *service.Forwarder, logger *slog.Logger) *RelayHandler {
	return &RelayHandler{
		forwarder: f,
		logger:    logger.With("component", "relay_handler"),
	}
}

// Handle buffers the inbound body, runs it through the Forwarder and writes
// the resulting response verbatim.
func (h *RelayHandler) Handle(c echo.Context) error {
	req := c.Request()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		// Rejections still carry CORS headers so browsers can read them.
		setHeader(c, h.forwarder.CORSHeader())

		// BodyLimit reports oversized payloads through the reader.
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		h.logger.Error("reading request body", "err", err, "path", req.URL.Path)
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "failed to read request body",
		})
	}

	resp := h.forwarder.Handle(req.Context(), &model.InboundRequest{
		Method: req.Method,
		Header: req.Header,
		Body:   body,
	})

	setHeader(c, resp.Header)
	c.Response().WriteHeader(resp.StatusCode)

	if len(resp.Body) == 0 {
		return nil
	}
	// The status is already on the wire, so a failed write can only be logged.
	if _, err := c.Response().Write(resp.Body); err != nil {
		h.logger.Error("writing response body", "err", err, "path", req.URL.Path)
	}
	return nil
}

// setHeader copies src onto the response, replacing values already set by
// middleware for the same keys.
func setHeader(c echo.Context, src http.Header) {
	dst := c.Response().Header()
	for key, vals := range src {
		dst.Del(key)
		for _, v := range vals {
			dst.Add(key, v)
		}
	}
}
