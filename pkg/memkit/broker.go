package memkit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fgrzl/buskit"
	"github.com/fgrzl/buskit/internal/subject"
	"github.com/fgrzl/buskit/pkg/api"
	"github.com/fgrzl/buskit/pkg/fanout"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var _ buskit.Broker = (*Broker)(nil)

const DefaultReplyTimeout = 5 * time.Second

// Config is the flat configuration surface of an in-process broker.
type Config struct {
	// SenderID identifies this broker instance. Empty assigns a fresh id.
	SenderID string

	// ReplyTimeout bounds request/reply waits when the request does not
	// carry its own timeout.
	ReplyTimeout time.Duration

	// Logger for broker internals. Nil disables logging.
	Logger *zerolog.Logger
}

// Broker is an in-process implementation of the broker contract. Streams
// are not durable here, so Start performs no provisioning and EnsureStream
// semantics collapse to a no-op.
type Broker struct {
	cfg      Config
	log      zerolog.Logger
	senderID string
	exchange *Exchange
	hub      *fanout.Hub

	mu        sync.RWMutex
	started   bool
	closed    bool
	listening subject.Set
}

// NewBroker creates an unstarted broker attached to the exchange.
func (e *Exchange) NewBroker(cfg Config) *Broker {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}
	senderID := cfg.SenderID
	if senderID == "" {
		senderID = uuid.NewString()
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "buskit").Str("sender_id", senderID).Logger()
	}
	return &Broker{
		cfg:       cfg,
		log:       log,
		senderID:  senderID,
		exchange:  e,
		hub:       fanout.NewHub(senderID),
		listening: subject.NewSet(),
	}
}

// SenderID returns this instance's identity as stamped on outgoing
// envelopes.
func (b *Broker) SenderID() string {
	return b.senderID
}

// Start attaches the broker to its exchange. The stream spec is accepted
// for contract compatibility; there is nothing to provision.
func (b *Broker) Start(ctx context.Context, _ *api.StreamSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return api.ErrNotConnected
	}
	if b.started {
		return errors.New("buskit: already started")
	}
	b.started = true
	b.exchange.attach(b)
	return nil
}

func (b *Broker) requireConnected() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.started || b.closed {
		return api.ErrNotConnected
	}
	return nil
}

// Send encodes the envelope and publishes it on the exchange.
func (b *Broker) Send(ctx context.Context, send *api.Send) error {
	if err := b.requireConnected(); err != nil {
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
	return b.exchange.publish(send.Subject, data)
}

// Listen registers interest in the given subjects. Subjects already
// listened to are skipped.
func (b *Broker) Listen(ctx context.Context, subjects ...string) error {
	if err := b.requireConnected(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range subjects {
		b.listening[s] = struct{}{}
	}
	return nil
}

// Messages derives an independent listener view.
func (b *Broker) Messages(opts *api.ListenOptions) (*fanout.View, error) {
	if err := b.requireConnected(); err != nil {
		return nil, err
	}
	return b.hub.Listen(opts), nil
}

// Request publishes a request envelope and waits for the correlated reply
// on the response subject, arming the observer before the request goes out.
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

	if err := b.Listen(ctx, req.ResponseSubject); err != nil {
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

// Close detaches the broker from the exchange. No operation is valid
// afterward.
func (b *Broker) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.exchange.detach(b)
	b.hub.Close()
	return nil
}

// deliver decodes inbound wire bytes and fans them out when this broker
// listens on the subject.
func (b *Broker) deliver(subject string, data []byte) {
	b.mu.RLock()
	interested := b.listening.Contains(subject)
	b.mu.RUnlock()
	if !interested {
		return
	}
	msg := api.DecodeMessage(subject, data)
	if msg.Err != nil {
		b.log.Warn().Err(msg.Err).Str("subject", subject).Msg("invalid payload")
	}
	b.hub.Publish(msg)
}
