// Package model defines shared types for the relay.
package model

import "net/http"

// InboundRequest is a caller request as seen by the forwarder.
// Header lookups are case-insensitive through http.Header.
type InboundRequest struct {
	Method string
	Header http.Header
	Body   []byte
}

// OutboundRequest is the single call issued to the webhook destination.
type OutboundRequest struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully buffered HTTP response. It describes both the
// destination's reply and the reply sent back to the caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
