// Package client provides the outbound HTTP client for the webhook destination.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"webhook-relay-go/internal/config"
	"webhook-relay-go/internal/metrics"
	"webhook-relay-go/internal/model"
)

const userAgent = "webhook-relay-go/1.0"

// WebhookClient sends requests to the configured webhook.
type WebhookClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewWebhookClient creates a WebhookClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewWebhookClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *WebhookClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &WebhookClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "webhook_client"),
		metrics: m,
	}
}

// Do issues exactly one request to the webhook and buffers the whole
// response body. Any failure is returned as *UpstreamError. The context
// bounds the call together with the client timeout.
func (c *WebhookClient) Do(ctx context.Context, out *model.OutboundRequest) (*model.Response, error) {
	req, err := http.NewRequestWithContext(ctx, out.Method, out.URL, bytes.NewReader(out.Body))
	if err != nil {
		return nil, &UpstreamError{Kind: KindOther, Err: err}
	}
	req.Header = out.Header.Clone()
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("webhook request",
		"method", req.Method,
		"host", req.URL.Host,
		"bytes_in", len(out.Body),
	)

	method := metrics.NormalizeMethod(req.Method)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(method, start, classify(err), err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(method, start, KindRead, fmt.Errorf("read webhook response: %w", err))
	}

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		c.metrics.UpstreamResponses.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *WebhookClient) fail(method string, start time.Time, kind Kind, err error) error {
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
		c.metrics.UpstreamFailures.WithLabelValues(method, string(kind)).Inc()
	}
	return &UpstreamError{Kind: kind, Err: err}
}
