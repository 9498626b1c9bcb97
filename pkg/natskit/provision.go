package natskit

import (
	"context"
	"errors"
	"sync"

	"github.com/fgrzl/buskit/internal/subject"
	"github.com/fgrzl/buskit/pkg/api"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxMsgs  = 1000
	defaultMaxBytes = 1 << 30 // 1 GiB
)

// provisioner ensures the broker's stream exists and carries the subjects it
// needs. Existence is verified once per stream name for the life of the
// process; a creation failure is sticky and never retried automatically.
type provisioner struct {
	js    jetStream
	log   zerolog.Logger
	group singleflight.Group

	mu       sync.RWMutex
	name     string
	verified map[string]error // nil = verified, non-nil = failed verification

	updateMu sync.Mutex
}

func newProvisioner(js jetStream, log zerolog.Logger) *provisioner {
	return &provisioner{
		js:       js,
		log:      log,
		verified: make(map[string]error),
	}
}

func (p *provisioner) streamName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

// ensureStream verifies the stream exists, creating it when absent.
// Concurrent first-time callers for the same name share one outcome.
func (p *provisioner) ensureStream(ctx context.Context, spec *api.StreamSpec) error {
	p.mu.Lock()
	p.name = spec.Name
	p.mu.Unlock()

	p.mu.RLock()
	verr, seen := p.verified[spec.Name]
	p.mu.RUnlock()
	if seen {
		return verr
	}

	_, err, _ := p.group.Do(spec.Name, func() (any, error) {
		p.mu.RLock()
		verr, seen := p.verified[spec.Name]
		p.mu.RUnlock()
		if seen {
			return nil, verr
		}

		result := p.verify(ctx, spec)

		p.mu.Lock()
		p.verified[spec.Name] = result
		p.mu.Unlock()
		return nil, result
	})
	return err
}

func (p *provisioner) verify(ctx context.Context, spec *api.StreamSpec) error {
	_, err := p.js.StreamInfo(spec.Name, nats.Context(ctx))
	if err == nil {
		p.log.Debug().Str("stream", spec.Name).Msg("stream verified")
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return &api.ProvisioningError{Stream: spec.Name, Err: err}
	}

	cfg := &nats.StreamConfig{
		Name:      spec.Name,
		Subjects:  spec.Subjects,
		Retention: retentionPolicy(spec.Retention),
		Storage:   storageType(spec.Storage),
		MaxMsgs:   spec.MaxMsgs,
		MaxBytes:  spec.MaxBytes,
	}
	if cfg.MaxMsgs == 0 {
		cfg.MaxMsgs = defaultMaxMsgs
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = defaultMaxBytes
	}

	if _, err := p.js.AddStream(cfg, nats.Context(ctx)); err != nil {
		return &api.ProvisioningError{Stream: spec.Name, Err: err}
	}
	p.log.Info().Str("stream", spec.Name).Strs("subjects", spec.Subjects).Msg("stream created")
	return nil
}

// ensureSubjects extends the stream's subject set with any subjects it does
// not already accept. When nothing is new the call performs no mutation;
// callers route subject lists through here before every publish, so the
// no-op path must stay cheap. Without a configured stream this is a no-op.
func (p *provisioner) ensureSubjects(ctx context.Context, subjects []string) error {
	name := p.streamName()
	if name == "" || len(subjects) == 0 {
		return nil
	}

	p.updateMu.Lock()
	defer p.updateMu.Unlock()

	info, err := p.js.StreamInfo(name, nats.Context(ctx))
	if err != nil {
		return &api.ProvisioningError{Stream: name, Err: err}
	}

	current := subject.NewSet(info.Config.Subjects...)
	missing := current.Missing(subjects)
	if len(missing) == 0 {
		return nil
	}

	cfg := info.Config
	cfg.Subjects = append(cfg.Subjects, missing...)
	if _, err := p.js.UpdateStream(&cfg, nats.Context(ctx)); err != nil {
		return &api.ProvisioningError{Stream: name, Err: err}
	}
	p.log.Info().Str("stream", name).Strs("subjects", missing).Msg("stream subjects extended")
	return nil
}
