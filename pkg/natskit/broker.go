// Package natskit is the NATS JetStream backend of the broker contract:
// durable subject-addressed streams, flow-controlled consumption with
// explicit acknowledgment, broadcast fan-out, and correlation-based
// request/reply composed from publish and subscribe.
package natskit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fgrzl/buskit"
	"github.com/fgrzl/buskit/pkg/api"
	"github.com/fgrzl/buskit/pkg/fanout"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

var _ buskit.Broker = (*Broker)(nil)

type state int32

const (
	// broker state transitions: unstarted -> connecting -> connected -> disconnected
	stateUnstarted state = iota
	stateConnecting
	stateConnected
	stateDisconnected
)

// Broker is the client-visible surface over one JetStream connection. All
// operations fail with api.ErrNotConnected before a successful Start or
// after Close; they never hang on a dead broker.
type Broker struct {
	cfg      Config
	log      zerolog.Logger
	senderID string

	mu    sync.Mutex
	state state

	ctx    context.Context
	cancel context.CancelFunc

	nc      *nats.Conn
	js      jetStream
	hub     *fanout.Hub
	flow    *gate
	prov    *provisioner
	subs    *subscriptions
	metrics *metrics
}

// New creates an unstarted broker. No I/O happens until Start.
func New(cfg Config) *Broker {
	cfg = cfg.withDefaults()
	senderID := cfg.SenderID
	if senderID == "" {
		senderID = uuid.NewString()
	}
	log := cfg.logger().With().Str("component", "buskit").Str("sender_id", senderID).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	b := &Broker{
		cfg:      cfg,
		log:      log,
		senderID: senderID,
		ctx:      ctx,
		cancel:   cancel,
		hub:      fanout.NewHub(senderID),
		flow:     newGate(cfg.MaxUnacked),
	}
	b.metrics = newMetrics(cfg.Metrics, b.flow)
	return b
}

// SenderID returns this instance's identity as stamped on outgoing
// envelopes.
func (b *Broker) SenderID() string {
	return b.senderID
}

// Start connects to the server and, when a stream spec is supplied,
// provisions the stream. Start either fully succeeds or fails as a whole: a
// provisioning failure fails Start even though the transport connection
// stays open, and the broker never reaches the connected state.
func (b *Broker) Start(ctx context.Context, spec *api.StreamSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateUnstarted:
	case stateConnecting, stateConnected:
		return errors.New("buskit: already started")
	default:
		return api.ErrNotConnected
	}
	b.state = stateConnecting

	if b.js == nil {
		nc, err := nats.Connect(b.cfg.URL, b.cfg.Options...)
		if err != nil {
			// No connection was established; leave the broker retryable.
			b.state = stateUnstarted
			return fmt.Errorf("connect %s: %w", b.cfg.URL, err)
		}
		js, err := nc.JetStream()
		if err != nil {
			nc.Close()
			b.state = stateUnstarted
			return fmt.Errorf("jetstream context: %w", err)
		}
		b.nc = nc
		b.js = js
	}

	b.prov = newProvisioner(b.js, b.log)

	streamName := ""
	if spec != nil && spec.Name != "" {
		if err := b.prov.ensureStream(ctx, spec); err != nil {
			return err
		}
		streamName = spec.Name
	}

	b.subs = newSubscriptions(b.ctx, b.js, b.hub, b.flow, b.metrics, b.log, b.cfg.SubjectPrefix, streamName, b.cfg.MaxAckPending)
	b.state = stateConnected
	b.log.Info().Str("url", b.cfg.URL).Str("stream", streamName).Msg("broker connected")
	return nil
}

func (b *Broker) requireConnected() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != stateConnected {
		return api.ErrNotConnected
	}
	return nil
}

// Send ensures the subject is accepted by the stream, then encodes and
// publishes the envelope.
func (b *Broker) Send(ctx context.Context, send *api.Send) error {
	if err := b.requireConnected(); err != nil {
		return err
	}
	if err := b.prov.ensureSubjects(ctx, []string{send.Subject}); err != nil {
		return err
	}

	env, err := api.NewEnvelope(send.Type, send.Data, b.senderID, send.MessageID, send.CorrelationID)
	if err != nil {
		return err
	}
	data, err := api.EncodeEnvelope(env)
	if err != nil {
		return err
	}
	if _, err := b.js.Publish(send.Subject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish %q: %w", send.Subject, err)
	}
	b.metrics.published.Inc()
	return nil
}

// Listen establishes a durable consumer per subject. Subjects already
// listened to are skipped.
func (b *Broker) Listen(ctx context.Context, subjects ...string) error {
	if err := b.requireConnected(); err != nil {
		return err
	}
	return b.subs.listen(ctx, subjects...)
}

// Messages derives an independent listener view over everything the
// broker's consume loops decode.
func (b *Broker) Messages(opts *api.ListenOptions) (*fanout.View, error) {
	if err := b.requireConnected(); err != nil {
		return nil, err
	}
	return b.hub.Listen(opts), nil
}

// Request publishes a request envelope and waits for the reply carrying the
// same correlation id on the response subject. The reply observer is armed
// before the request is published, so a fast responder cannot race the
// waiter. Earlier non-matching messages on the subject are discarded rather
// than resolving the wait.
func (b *Broker) Request(ctx context.Context, req *api.Request) (*api.Envelope, error) {
	if err := b.requireConnected(); err != nil {
		return nil, err
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = b.cfg.ReplyTimeout
	}
	correlation := req.CorrelationID
	if correlation == "" {
		correlation = api.NewID()
	}

	if err := b.prov.ensureSubjects(ctx, []string{req.ResponseSubject}); err != nil {
		return nil, err
	}
	if err := b.subs.awaitReady(ctx, req.ResponseSubject); err != nil {
		return nil, err
	}

	view := b.hub.Listen(&api.ListenOptions{
		Subjects:   []string{req.ResponseSubject},
		IgnoreSelf: req.IgnoreSelf,
	})
	defer view.Close()

	err := b.Send(ctx, &api.Send{
		Subject:       req.Subject,
		Type:          req.Type,
		Data:          req.Data,
		CorrelationID: correlation,
	})
	if err != nil {
		return nil, err
	}

	msg, err := fanout.Await(ctx, view, timeout, func(m *api.Message) bool {
		return m.Err == nil && m.Correlation() == correlation
	})
	if err != nil {
		if errors.Is(err, api.ErrTimeout) {
			return nil, fmt.Errorf("%w: no reply on %q within %s", api.ErrTimeout, req.ResponseSubject, timeout)
		}
		return nil, err
	}
	return msg.Envelope, nil
}

// Close disconnects the broker. No operation is valid afterward.
func (b *Broker) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.state == stateDisconnected {
		b.mu.Unlock()
		return nil
	}
	b.state = stateDisconnected
	b.mu.Unlock()

	b.cancel()
	if b.subs != nil {
		b.subs.close()
	}
	b.hub.Close()
	if b.nc != nil {
		b.nc.Close()
	}
	b.log.Info().Msg("broker disconnected")
	return nil
}
