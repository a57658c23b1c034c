// Package service implements the relay's forwarding logic.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"webhook-relay-go/internal/client"
	"webhook-relay-go/internal/config"
	"webhook-relay-go/internal/metrics"
	"webhook-relay-go/internal/model"
)

// ErrConfigMissing is reported when no destination URL is configured.
var ErrConfigMissing = errors.New("webhook destination URL is not configured")

const (
	allowMethods = "GET, POST, OPTIONS"
	allowHeaders = "Content-Type, Authorization"

	defaultRequestContentType  = "application/json"
	defaultResponseContentType = "text/plain"
)

// Doer performs one outbound call and returns the fully buffered response.
type Doer interface {
	Do(ctx context.Context, req *model.OutboundRequest) (*model.Response, error)
}

// Forwarder relays inbound requests to a single webhook destination and
// decorates every reply with CORS headers. It holds no per-request state and
// is safe for concurrent use.
type Forwarder struct {
	client  Doer
	logger  *slog.Logger
	metrics *metrics.Metrics

	destination string
	origin      string
	maxAge      string
	apiKey      string
}

// NewForwarder creates a Forwarder from the webhook and CORS settings in cfg.
// The metrics parameter is optional.
func NewForwarder(c Doer, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Forwarder {
	return &Forwarder{
		client:      c,
		logger:      logger.With("component", "forwarder"),
		metrics:     m,
		destination: cfg.Webhook.URL,
		origin:      cfg.CORS.AllowedOrigin,
		maxAge:      strconv.Itoa(cfg.CORS.MaxAgeSeconds),
		apiKey:      cfg.Webhook.APIKey,
	}
}

// Destination returns the configured webhook URL, possibly empty.
func (f *Forwarder) Destination() string {
	return f.destination
}

// HasAPIKey reports whether outbound calls carry a bearer token.
func (f *Forwarder) HasAPIKey() bool {
	return f.apiKey != ""
}

// Handle answers one inbound request. The outcome is always a response:
//   - no destination: 500 with a JSON error, for every method
//   - OPTIONS: 204 preflight, no outbound call
//   - anything else: one call to the destination; its status, body and
//     Content-Type are mirrored, or 502 with a JSON error if the call fails
func (f *Forwarder) Handle(ctx context.Context, in *model.InboundRequest) *model.Response {
	if f.destination == "" {
		f.logger.Error("rejecting request", "method", in.Method, "err", ErrConfigMissing)
		return f.errorResponse(http.StatusInternalServerError, ErrConfigMissing)
	}

	if in.Method == http.MethodOptions {
		if f.metrics != nil {
			f.metrics.PreflightsTotal.Inc()
		}
		h := f.CORSHeader()
		h.Set("Access-Control-Max-Age", f.maxAge)
		return &model.Response{StatusCode: http.StatusNoContent, Header: h}
	}

	out := &model.OutboundRequest{
		Method: in.Method,
		URL:    f.destination,
		Header: f.outboundHeader(in.Header),
		Body:   in.Body,
	}

	f.logger.Debug("forwarding request",
		"method", out.Method,
		"content_type", out.Header.Get("Content-Type"),
		"bytes", len(out.Body),
	)

	resp, err := f.client.Do(ctx, out)
	if err != nil {
		kind := client.KindOther
		var ue *client.UpstreamError
		if errors.As(err, &ue) {
			kind = ue.Kind
		}
		f.logger.Warn("webhook call failed", "method", in.Method, "kind", kind, "err", err)
		return f.errorResponse(http.StatusBadGateway, err)
	}

	h := f.CORSHeader()
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = defaultResponseContentType
	}
	h.Set("Content-Type", contentType)

	return &model.Response{
		StatusCode: resp.StatusCode,
		Header:     h,
		Body:       resp.Body,
	}
}

func (f *Forwarder) outboundHeader(in http.Header) http.Header {
	h := make(http.Header, 2)
	contentType := in.Get("Content-Type")
	if contentType == "" {
		contentType = defaultRequestContentType
	}
	h.Set("Content-Type", contentType)
	if f.apiKey != "" {
		h.Set("Authorization", "Bearer "+f.apiKey)
	}
	return h
}

// CORSHeader returns a fresh set of the fixed CORS headers for origin.
func CORSHeader(origin string) http.Header {
	h := make(http.Header, 5)
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", allowMethods)
	h.Set("Access-Control-Allow-Headers", allowHeaders)
	return h
}

// CORSHeader returns the CORS headers carried by every reply of f.
func (f *Forwarder) CORSHeader() http.Header {
	return CORSHeader(f.origin)
}

type errorBody struct {
	Error string `json:"error"`
}

func (f *Forwarder) errorResponse(status int, err error) *model.Response {
	body, _ := json.Marshal(errorBody{Error: err.Error()})
	h := f.CORSHeader()
	h.Set("Content-Type", "application/json")
	return &model.Response{StatusCode: status, Header: h, Body: body}
}
