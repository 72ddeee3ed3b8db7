package chat

import (
	"sync"

	"github.com/jiangkunoa/chat-practise/internal/metrics"
)

// outboundQueueSize bounds each connection's pending deliveries. A full queue
// drops further sends instead of blocking the sender.
const outboundQueueSize = 10

// Handle is a connection's outbound delivery endpoint: a bounded queue the
// writer loop drains, plus a stop signal observed by both loops.
type Handle struct {
	out  chan []byte
	done chan struct{}
	once sync.Once
}

// NewHandle creates a handle with the standard queue capacity.
func NewHandle() *Handle {
	return &Handle{
		out:  make(chan []byte, outboundQueueSize),
		done: make(chan struct{}),
	}
}

// Close signals the handle's session to stop. Safe to call more than once.
func (h *Handle) Close() {
	h.once.Do(func() { close(h.done) })
}

// Done returns a channel closed when the handle is closed.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Registry is the process-wide mapping from user id to that user's live
// connection handle. It is the only state shared across sessions; all access
// goes through these methods, never through the map directly.
type Registry struct {
	mu    sync.Mutex
	conns map[uint64]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[uint64]*Handle)}
}

// Register inserts or replaces the entry for userID. A superseded handle is
// force-closed so the stale session stops promptly instead of lingering until
// its socket fails on its own.
func (r *Registry) Register(userID uint64, h *Handle) {
	r.mu.Lock()
	old := r.conns[userID]
	r.conns[userID] = h
	r.mu.Unlock()

	if old == nil {
		metrics.ConnectionsActive.Inc()
	} else if old != h {
		// Takeover: the map size is unchanged, the stale session just stops.
		old.Close()
	}
}

// Deregister removes the entry for userID only if it still maps to h, so a
// stale session cannot delete a newer session's registration.
func (r *Registry) Deregister(userID uint64, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[userID] == h {
		delete(r.conns, userID)
		metrics.ConnectionsActive.Dec()
	}
}

// SendTo enqueues msg for userID without blocking. It reports whether the
// delivery was accepted; an unknown recipient or a full queue both count as a
// miss, not an error. The lookup and enqueue happen under the lock so the
// handle cannot be deregistered in between.
func (r *Registry) SendTo(userID uint64, msg []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.conns[userID]
	if !ok {
		return false
	}
	select {
	case h.out <- msg:
		return true
	default:
		return false
	}
}

// SendToMany delivers msg to every id except exclude, ignoring per-recipient
// misses.
func (r *Registry) SendToMany(userIDs []uint64, msg []byte, exclude uint64) {
	for _, id := range userIDs {
		if id == exclude {
			continue
		}
		if !r.SendTo(id, msg) {
			metrics.DeliveriesDropped.Inc()
		}
	}
}
