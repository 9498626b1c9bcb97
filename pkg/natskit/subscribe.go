package natskit

import (
	"context"
	"errors"
	"sync"

	"github.com/fgrzl/buskit/internal/subject"
	"github.com/fgrzl/buskit/pkg/api"
	"github.com/fgrzl/buskit/pkg/fanout"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// consumer is the per-subject subscription state: the derived names, the
// transport subscription, and a readiness signal other operations await.
type consumer struct {
	subject string
	durable string
	deliver string
	ready   chan struct{}
	sub     *nats.Subscription
}

// subscriptions establishes at most one durable consumer per subject and
// runs its consume loop for the life of the broker connection. There is no
// unsubscribe short of closing the broker.
type subscriptions struct {
	ctx     context.Context
	js      jetStream
	hub     *fanout.Hub
	flow    *gate
	metrics *metrics
	log     zerolog.Logger

	prefix        string
	stream        string
	maxAckPending int

	mu    sync.RWMutex
	subs  map[string]*consumer
	group singleflight.Group
}

func newSubscriptions(ctx context.Context, js jetStream, hub *fanout.Hub, flow *gate, m *metrics, log zerolog.Logger, prefix, stream string, maxAckPending int) *subscriptions {
	return &subscriptions{
		ctx:           ctx,
		js:            js,
		hub:           hub,
		flow:          flow,
		metrics:       m,
		log:           log,
		prefix:        prefix,
		stream:        stream,
		maxAckPending: maxAckPending,
		subs:          make(map[string]*consumer),
	}
}

// listen ensures a durable consumer exists for every subject. Subjects
// already subscribed are skipped silently. A failure for one subject aborts
// only that subject's setup; the remaining subjects still bind and the
// failures are reported together.
func (s *subscriptions) listen(ctx context.Context, subjects ...string) error {
	var errs []error
	for _, subj := range subjects {
		if _, err := s.ensure(ctx, subj); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// awaitReady blocks until the subject's consume loop has bound. The subject
// must have been passed to listen first.
func (s *subscriptions) awaitReady(ctx context.Context, subj string) error {
	c, err := s.ensure(ctx, subj)
	if err != nil {
		return err
	}
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *subscriptions) ensure(ctx context.Context, subj string) (*consumer, error) {
	s.mu.RLock()
	c, ok := s.subs[subj]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	// Concurrent first-time listens for the same subject share one bind.
	v, err, _ := s.group.Do(subj, func() (any, error) {
		s.mu.RLock()
		c, ok := s.subs[subj]
		s.mu.RUnlock()
		if ok {
			return c, nil
		}
		return s.bind(ctx, subj)
	})
	if err != nil {
		return nil, err
	}
	return v.(*consumer), nil
}

func (s *subscriptions) bind(ctx context.Context, subj string) (*consumer, error) {
	c := &consumer{
		subject: subj,
		durable: subject.DurableName(subj),
		deliver: subject.DeliverSubject(s.prefix, subj),
		ready:   make(chan struct{}),
	}

	opts := []nats.SubOpt{
		nats.Durable(c.durable),
		nats.DeliverSubject(c.deliver),
		nats.DeliverAll(),
		nats.AckExplicit(),
		nats.ManualAck(),
		nats.MaxAckPending(s.maxAckPending),
		nats.Context(ctx),
	}
	if s.stream != "" {
		opts = append(opts, nats.BindStream(s.stream))
	}

	ch := make(chan *nats.Msg, s.maxAckPending)
	sub, err := s.js.ChanSubscribe(subj, ch, opts...)
	if err != nil {
		return nil, &api.SubscriptionError{Subject: subj, Err: err}
	}
	c.sub = sub

	s.mu.Lock()
	s.subs[subj] = c
	s.mu.Unlock()

	go s.consume(c, ch)
	close(c.ready)

	s.log.Debug().
		Str("subject", subj).
		Str("durable", c.durable).
		Str("deliver", c.deliver).
		Msg("consumer bound")
	return c, nil
}

// consume is the per-subject loop: take the next delivery, acquire a
// flow-control slot, decode, fan out, acknowledge, release. The slot is
// taken only once a delivery is in hand, so an idle subject holds nothing
// against the shared bound. The acknowledgment happens after fan-out is
// initiated, not after listeners finish; delivery to the application is
// best-effort past this point.
func (s *subscriptions) consume(c *consumer, ch chan *nats.Msg) {
	log := s.log.With().Str("subject", c.subject).Logger()
	for {
		select {
		case <-s.ctx.Done():
			return
		case m, ok := <-ch:
			if !ok {
				return
			}
			if err := s.flow.acquire(s.ctx); err != nil {
				return
			}
			s.dispatch(log, c.subject, m.Data, m.Ack)
		}
	}
}

// dispatch handles one delivery while holding a flow-control slot.
func (s *subscriptions) dispatch(log zerolog.Logger, subj string, data []byte, ack func(...nats.AckOpt) error) {
	defer s.flow.release()

	msg := api.DecodeMessage(subj, data)
	if msg.Err != nil {
		// Delivered downstream regardless; a bad payload never stops the loop.
		s.metrics.decodeErrors.Inc()
		log.Warn().Err(msg.Err).Msg("invalid payload")
	}
	s.metrics.delivered.Inc()
	s.hub.Publish(msg)

	if err := ack(); err != nil {
		log.Warn().Err(err).Msg("ack failed")
		return
	}
	s.metrics.acked.Inc()
}

// close unsubscribes every consumer. Loops exit via the broker context.
func (s *subscriptions) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.subs {
		if c.sub != nil {
			if err := c.sub.Unsubscribe(); err != nil {
				s.log.Debug().Err(err).Str("subject", c.subject).Msg("unsubscribe failed")
			}
		}
	}
}
