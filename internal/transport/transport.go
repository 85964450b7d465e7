// Package transport implements the request primitive used by the discovery
// engine to query a mesh node for its devscan payload.
//
// A Requester call ends in one of three outcomes: a payload (success), an
// error matching ErrTimeout (no answer within the retransmission window) or
// any other error (failure). Framing, acknowledgement and retransmission are
// the concern of the implementation.
package transport

import (
	"context"
	"errors"
	"fmt"

	"meshscope/internal/domain"
)

// ErrTimeout is returned when a node did not answer in time
var ErrTimeout = errors.New("transport timeout")

// Requester queries one mesh node
type Requester interface {
	Request(ctx context.Context, addr domain.Address) ([]byte, error)
}

// RequesterFunc adapts a function to the Requester interface
type RequesterFunc func(ctx context.Context, addr domain.Address) ([]byte, error)

// Request calls f
func (f RequesterFunc) Request(ctx context.Context, addr domain.Address) ([]byte, error) {
	return f(ctx, addr)
}

// EventPublisher receives transport diagnostics
type EventPublisher interface {
	PublishDiscoveryEvent(eventType string, payload interface{})
}

// Diagnostic event types
const (
	EventRequestSent     = "transport-request-sent"
	EventResponse        = "transport-response"
	EventRequestFailed   = "transport-request-failed"
	EventRequestTimedOut = "transport-request-timeout"
)

// StatusError reports a response whose code is not a success code
type StatusError struct {
	Address domain.Address
	Code    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("devscan of %s answered %s", e.Address, e.Code)
}

// IsTimeout reports whether err is a transport timeout
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
