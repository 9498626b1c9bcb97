package natskit

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// gate bounds unacknowledged deliveries across every subject of one broker
// instance. Acquire blocks while the bound is reached and wakes immediately
// on release; there is no polling interval.
type gate struct {
	sem      *semaphore.Weighted
	inflight atomic.Int64
	limit    int64
}

func newGate(limit int64) *gate {
	return &gate{
		sem:   semaphore.NewWeighted(limit),
		limit: limit,
	}
}

func (g *gate) acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	g.inflight.Add(1)
	return nil
}

func (g *gate) release() {
	g.inflight.Add(-1)
	g.sem.Release(1)
}

// Inflight reports the current number of unacknowledged deliveries.
func (g *gate) Inflight() int64 {
	return g.inflight.Load()
}
