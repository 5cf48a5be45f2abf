package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"clearspace/core"
)

type subscriber struct {
	ch   chan core.Event
	user core.UserID // empty means all users
}

// Hub fans progress events out to live subscribers. A subscriber can
// listen to the whole stream or to a single user's events.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]subscriber
	next int
}

func NewHub() *Hub { return &Hub{subs: map[int]subscriber{}} }

// Subscribe registers a listener for every event.
func (h *Hub) Subscribe(buffer int) (int, <-chan core.Event) {
	return h.subscribe(buffer, "")
}

// SubscribeUser registers a listener that only receives events for one user.
func (h *Hub) SubscribeUser(buffer int, user core.UserID) (int, <-chan core.Event) {
	if normalized, err := core.NormalizeUserID(user); err == nil {
		user = normalized
	}
	return h.subscribe(buffer, user)
}

func (h *Hub) subscribe(buffer int, user core.UserID) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Event, buffer)
	h.subs[id] = subscriber{ch: ch, user: user}
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	h.mu.RLock()
	// copy to avoid holding lock during send
	receivers := make([]chan core.Event, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.user != "" && sub.user != ev.UserID {
			continue
		}
		receivers = append(receivers, sub.ch)
	}
	h.mu.RUnlock()
	for _, ch := range receivers {
		select {
		case ch <- ev:
		default: /* drop if full */
		}
	}
}

// MarshalJSON converts an event to JSON bytes for WebSocket delivery.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
