// Package operation implements the Operation Runtime (spec.md §4.7): the
// registry-backed lifecycle for every asynchronous action, a bounded worker
// pool that runs them off the request-serving path, a progress
// broadcaster for live status, a polling contract, and a retention sweeper.
package operation

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Broadcaster fans out progress events to multiple subscribers for one
// operation. Adapted directly from the teacher's server.Broadcaster
// (internal/server/sse.go): same history-replay-then-live shape, "progress
// event" vocabulary instead of "pipeline event".
type Broadcaster struct {
	mu      sync.Mutex
	history []map[string]any
	clients map[uint64]chan map[string]any
	nextID  uint64
	closed  bool
}

// NewBroadcaster creates a new event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[uint64]chan map[string]any)}
}

// Send records ev and fans it out to every live subscriber. Slow
// subscribers are dropped rather than allowed to block the operation.
func (b *Broadcaster) Send(ev map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.history = append(b.history, ev)
	for id, ch := range b.clients {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(b.clients, id)
		}
	}
}

// Subscribe returns a channel that first replays history, then streams live
// events, plus an unsubscribe function.
func (b *Broadcaster) Subscribe() (<-chan map[string]any, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan map[string]any, 256)
	id := b.nextID
	b.nextID++

	for _, ev := range b.history {
		ch <- ev
	}

	if b.closed {
		close(ch)
		return ch, func() {}
	}

	b.clients[id] = ch
	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.clients[id]; ok {
			delete(b.clients, id)
			close(ch)
		}
	}
	return ch, unsub
}

// Close signals that no more events will be sent, closing every subscriber
// channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

// History returns a copy of every event sent so far.
func (b *Broadcaster) History() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, len(b.history))
	copy(out, b.history)
	return out
}

// WriteSSE streams a Broadcaster's events to w as Server-Sent Events. This
// is the additive `GET /operations/{id}/events` endpoint SPEC_FULL.md §6
// layers on top of the required polling contract.
func WriteSSE(w http.ResponseWriter, r *http.Request, b *Broadcaster) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, unsub := b.Subscribe()
	defer unsub()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				fmt.Fprintf(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// broadcasterRegistry holds one Broadcaster per in-flight operation id.
type broadcasterRegistry struct {
	mu sync.Mutex
	m  map[string]*Broadcaster
}

func newBroadcasterRegistry() *broadcasterRegistry {
	return &broadcasterRegistry{m: map[string]*Broadcaster{}}
}

func (r *broadcasterRegistry) create(id string) *Broadcaster {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := NewBroadcaster()
	r.m[id] = b
	return b
}

func (r *broadcasterRegistry) get(id string) (*Broadcaster, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.m[id]
	return b, ok
}

func (r *broadcasterRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, id)
}
