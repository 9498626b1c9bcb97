package api

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by broker operations before a successful
	// Start or after Close.
	ErrNotConnected = errors.New("buskit: not connected")

	// ErrTimeout is returned when no matching reply arrives within the
	// request deadline. Callers retry the whole round trip with a fresh
	// correlation id.
	ErrTimeout = errors.New("buskit: reply timed out")

	// ErrClosed is returned when publishing to a closed hub or exchange.
	ErrClosed = errors.New("buskit: closed")
)

// ProvisioningError reports a stream create/update failure. The stream is
// marked failed-verification and not retried automatically.
type ProvisioningError struct {
	Stream string
	Err    error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision stream %q: %v", e.Stream, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// SubscriptionError reports a failure to establish a durable consumer for a
// single subject. Other subjects' consumers are unaffected.
type SubscriptionError struct {
	Subject string
	Err     error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscribe %q: %v", e.Subject, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// DecodeError marks an inbound payload that could not be decoded. It is
// recovered locally and carried on the message rather than propagated.
type DecodeError struct {
	Subject string
	Raw     []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid payload on %q: %v", e.Subject, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
