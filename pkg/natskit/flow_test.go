package natskit

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateBoundsInflight(t *testing.T) {
	// Arrange
	const limit = 100
	const total = 150
	g := newGate(limit)

	var mu sync.Mutex
	maxSeen := int64(0)

	// Act: 150 concurrent deliveries through a gate of 100
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, g.acquire(context.Background()))
			mu.Lock()
			if n := g.Inflight(); n > maxSeen {
				maxSeen = n
			}
			mu.Unlock()
			g.release()
		}()
	}
	wg.Wait()

	// Assert: never more than the bound, and everything drains
	assert.LessOrEqual(t, maxSeen, int64(limit))
	assert.Equal(t, int64(0), g.Inflight())
}

func TestGateAcquireRespectsContext(t *testing.T) {
	// Arrange: gate already full
	g := newGate(1)
	require.NoError(t, g.acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Act
	err := g.acquire(ctx)

	// Assert
	assert.Error(t, err)
	g.release()
	assert.Equal(t, int64(0), g.Inflight())
}
