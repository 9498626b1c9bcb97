// Package memkit is an in-process backend of the broker contract. It has no
// durable streams, so stream provisioning is a no-op; delivery is immediate
// fan-out between every broker attached to the same exchange.
package memkit

import (
	"context"
	"sync"

	"github.com/fgrzl/buskit/pkg/api"
)

// Exchange is the in-process switchboard brokers attach to. Brokers on the
// same exchange see each other's messages; separate exchanges are fully
// independent.
type Exchange struct {
	mu      sync.RWMutex
	brokers map[*Broker]struct{}
	closed  bool
}

// NewExchange creates an empty exchange.
func NewExchange() *Exchange {
	return &Exchange{
		brokers: make(map[*Broker]struct{}),
	}
}

func (e *Exchange) attach(b *Broker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.brokers[b] = struct{}{}
}

func (e *Exchange) detach(b *Broker) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.brokers, b)
}

// publish routes wire bytes to every attached broker listening on the
// subject. Each receiver decodes independently, mirroring the transport's
// behavior of handing raw payloads to every consumer.
func (e *Exchange) publish(subject string, data []byte) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return api.ErrClosed
	}
	for b := range e.brokers {
		b.deliver(subject, data)
	}
	return nil
}

// Close detaches and closes every broker on the exchange.
func (e *Exchange) Close() {
	e.mu.Lock()
	brokers := make([]*Broker, 0, len(e.brokers))
	for b := range e.brokers {
		brokers = append(brokers, b)
	}
	e.closed = true
	e.mu.Unlock()

	for _, b := range brokers {
		_ = b.Close(context.Background())
	}
}
