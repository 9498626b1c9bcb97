// Package fanout distributes decoded inbound messages from one broker
// instance to any number of independent listener views.
package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/fgrzl/buskit/internal/subject"
	"github.com/fgrzl/buskit/pkg/api"
)

// Hub is the single shared broadcast point of a broker instance. Consume
// loops publish into it; listener views are derived from it by filtering.
// Views never block the publisher.
type Hub struct {
	senderID string
	mu       sync.RWMutex
	views    map[*View]struct{}
	closed   bool
}

// NewHub creates a hub owned by the broker instance identified by senderID.
func NewHub(senderID string) *Hub {
	return &Hub{
		senderID: senderID,
		views:    make(map[*View]struct{}),
	}
}

// Publish fans a message out to every live view whose filter matches. It
// never blocks: each view buffers independently.
func (h *Hub) Publish(msg *api.Message) {
	if msg == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for v := range h.views {
		if v.matches(msg) {
			v.push(msg)
		}
	}
}

// Listen derives a new independent view. Deriving a view does not affect any
// other view's state.
func (h *Hub) Listen(opts *api.ListenOptions) *View {
	if opts == nil {
		opts = &api.ListenOptions{}
	}
	v := &View{
		hub:        h,
		subjects:   subject.NewSet(opts.Subjects...),
		ignoreSelf: opts.IgnoreSelf,
		out:        make(chan *api.Message),
		done:       make(chan struct{}),
	}
	v.cond = sync.NewCond(&v.mu)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(v.done)
		close(v.out)
		v.closed = true
		return v
	}
	h.views[v] = struct{}{}
	go v.pump()
	return v
}

// Close tears down the hub and every view derived from it.
func (h *Hub) Close() {
	h.mu.Lock()
	views := make([]*View, 0, len(h.views))
	for v := range h.views {
		views = append(views, v)
	}
	h.closed = true
	h.mu.Unlock()

	for _, v := range views {
		v.Close()
	}
}

// View is a live, unbounded listener over the hub. Messages are delivered on
// C in arrival order. A slow consumer grows the view's buffer instead of
// stalling the consume loops.
type View struct {
	hub        *Hub
	subjects   subject.Set
	ignoreSelf bool

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []*api.Message
	closed bool

	out       chan *api.Message
	done      chan struct{}
	closeOnce sync.Once
}

// C returns the delivery channel. It is closed when the view is closed.
func (v *View) C() <-chan *api.Message {
	return v.out
}

// Close detaches the view from the hub and stops delivery. It is safe to
// call more than once.
func (v *View) Close() {
	v.closeOnce.Do(func() {
		v.hub.mu.Lock()
		delete(v.hub.views, v)
		v.hub.mu.Unlock()

		v.mu.Lock()
		v.closed = true
		v.mu.Unlock()
		v.cond.Signal()
		close(v.done)
	})
}

func (v *View) matches(msg *api.Message) bool {
	if v.ignoreSelf && v.hub.senderID != "" && msg.SenderID() == v.hub.senderID {
		return false
	}
	if len(v.subjects) > 0 && !v.subjects.Contains(msg.Subject) {
		return false
	}
	return true
}

func (v *View) push(msg *api.Message) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.queue = append(v.queue, msg)
	v.mu.Unlock()
	v.cond.Signal()
}

func (v *View) pump() {
	defer close(v.out)
	for {
		v.mu.Lock()
		for len(v.queue) == 0 && !v.closed {
			v.cond.Wait()
		}
		if v.closed {
			v.mu.Unlock()
			return
		}
		msg := v.queue[0]
		v.queue = v.queue[1:]
		v.mu.Unlock()

		select {
		case v.out <- msg:
		case <-v.done:
			return
		}
	}
}

// Await delivers the first message on the view accepted by match, or
// api.ErrTimeout once the deadline passes. Non-matching messages are
// discarded rather than resolving the wait.
func Await(ctx context.Context, v *View, timeout time.Duration, match func(*api.Message) bool) (*api.Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, api.ErrTimeout
		case msg, ok := <-v.out:
			if !ok {
				return nil, api.ErrClosed
			}
			if match == nil || match(msg) {
				return msg, nil
			}
		}
	}
}
