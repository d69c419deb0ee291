// Package hub fans board events out to connected clients.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"boardsync/internal/model"
)

const defaultBuffer = 256

type Options struct {
	// Buffer is the per-subscriber queue length. A subscriber that falls this
	// far behind is disconnected and must resync from a snapshot.
	Buffer int
	Logger zerolog.Logger
}

// Hub is an owned broadcaster; create one per server.
type Hub struct {
	buffer int
	log    zerolog.Logger

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
	nextID uint64
}

func New(opts Options) *Hub {
	buf := opts.Buffer
	if buf <= 0 {
		buf = defaultBuffer
	}
	return &Hub{buffer: buf, log: opts.Logger, subs: map[*Subscription]struct{}{}}
}

// Subscription is one client's ordered event queue.
type Subscription struct {
	ID uint64

	hub        *Hub
	ch         chan model.Event
	overflowed atomic.Bool
}

// Events yields events in publish order. The channel is closed when the
// subscription ends, either by Close or by overflow.
func (s *Subscription) Events() <-chan model.Event { return s.ch }

// Overflowed reports whether the hub dropped this subscriber for lagging.
func (s *Subscription) Overflowed() bool { return s.overflowed.Load() }

func (s *Subscription) Close() { s.hub.remove(s) }

// Subscribe registers a new subscriber. On a closed hub the returned
// subscription is already closed.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{ID: h.nextID, hub: h, ch: make(chan model.Event, h.buffer)}
	if h.closed {
		close(sub.ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	h.log.Debug().Uint64("sub", sub.ID).Int("subscribers", len(h.subs)).Msg("subscribed")
	return sub
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
	h.log.Debug().Uint64("sub", sub.ID).Int("subscribers", len(h.subs)).Msg("unsubscribed")
}

// Publish enqueues ev for every subscriber without blocking. A full queue
// ends that subscription.
func (h *Hub) Publish(ev model.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.overflowed.Store(true)
			delete(h.subs, sub)
			close(sub.ch)
			h.log.Warn().Uint64("sub", sub.ID).Str("event", string(ev.Type)).Msg("subscriber lagging, dropped")
		}
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription; later subscriptions start closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}
