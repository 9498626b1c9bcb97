package buskit

import (
	"context"
	"errors"
	"sync"
)

// Registry is an explicit multiton of named broker instances. Each name maps
// to one independent connection; the registry's lifecycle is owned by the
// application rather than module-level state.
type Registry struct {
	mu      sync.RWMutex
	brokers map[string]Broker
	factory func(name string) (Broker, error)
}

// NewRegistry creates a registry backed by the given factory.
func NewRegistry(factory func(name string) (Broker, error)) *Registry {
	return &Registry{
		brokers: make(map[string]Broker),
		factory: factory,
	}
}

// Get returns the broker registered under name, creating it on first use.
// Concurrent first-time callers for the same name share one instance.
func (r *Registry) Get(name string) (Broker, error) {
	r.mu.RLock()
	broker, ok := r.brokers[name]
	r.mu.RUnlock()
	if ok {
		return broker, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check in case it was created between locks
	if broker, ok := r.brokers[name]; ok {
		return broker, nil
	}

	broker, err := r.factory(name)
	if err != nil {
		return nil, err
	}
	r.brokers[name] = broker
	return broker, nil
}

// Close disconnects every broker in the registry.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, broker := range r.brokers {
		if err := broker.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		delete(r.brokers, name)
	}
	return errors.Join(errs...)
}
