package client

import (
	"context"
	"errors"
	"net"
)

// Kind classifies why a webhook call produced no response.
type Kind string

const (
	KindTimeout    Kind = "timeout"
	KindCanceled   Kind = "canceled"
	KindDNS        Kind = "dns"
	KindConnection Kind = "connection"
	KindRead       Kind = "read"
	KindOther      Kind = "other"
)

// UpstreamError is returned for every failed webhook call. Its message is
// the underlying error's message.
type UpstreamError struct {
	Kind Kind
	Err  error
}

func (e *UpstreamError) Error() string { return e.Err.Error() }

func (e *UpstreamError) Unwrap() error { return e.Err }

func classify(err error) Kind {
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return KindDNS
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}
	return KindOther
}
