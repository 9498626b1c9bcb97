// Package buskit is a client for durable, subject-addressed message
// streams: publish envelopes, maintain flow-controlled durable
// subscriptions, fan inbound messages out to independent listeners, and run
// correlation-based request/reply on top of pure publish/subscribe.
package buskit

import (
	"context"

	"github.com/fgrzl/buskit/pkg/api"
	"github.com/fgrzl/buskit/pkg/fanout"
)

type Envelope = api.Envelope
type Attributes = api.Attributes
type Message = api.Message
type StreamSpec = api.StreamSpec
type Send = api.Send
type Request = api.Request
type ListenOptions = api.ListenOptions
type View = fanout.View

var (
	ErrNotConnected = api.ErrNotConnected
	ErrTimeout      = api.ErrTimeout
)

type Broker interface {

	// Start establishes the connection and, when a stream spec is given,
	// provisions the stream. It succeeds or fails as a whole.
	Start(ctx context.Context, stream *StreamSpec) error

	// Send ensures the subject is accepted by the stream, then encodes and
	// publishes the envelope.
	Send(ctx context.Context, send *Send) error

	// Listen establishes a durable consumer per subject. Subjects already
	// listened to are skipped.
	Listen(ctx context.Context, subjects ...string) error

	// Messages derives an independent, filtered listener view over the
	// broker's inbound messages.
	Messages(opts *ListenOptions) (*View, error)

	// Request publishes a request envelope and waits for the reply carrying
	// the same correlation id on the response subject.
	Request(ctx context.Context, req *Request) (*Envelope, error)

	// Close disconnects the broker. No operation is valid afterward.
	Close(ctx context.Context) error
}
