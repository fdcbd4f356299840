// Package realtime fans out per-project progress and status events to
// websocket subscribers.
package realtime

import (
	"context"
	"sync"
	"time"
)

// Event is one realtime notification for a project.
type Event struct {
	ProjectID string    `json:"projectId"`
	Kind      string    `json:"kind"` // "progress", "stage", "status"
	Stage     string    `json:"stage,omitempty"`
	Percent   int       `json:"percent,omitempty"`
	Status    string    `json:"status,omitempty"`
	Message   string    `json:"message,omitempty"`
	At        time.Time `json:"at"`
}

const subscriberBuffer = 32

// Hub is an in-process pub/sub keyed by project id. Publish never blocks: a
// subscriber that cannot keep up loses events rather than stalling the
// publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Event]struct{})}
}

// Subscribe registers for a project's events until ctx is done or the
// returned cancel func is called.
func (h *Hub) Subscribe(ctx context.Context, projectID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.subs[projectID] == nil {
		h.subs[projectID] = make(map[chan Event]struct{})
	}
	h.subs[projectID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.subs[projectID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(h.subs, projectID)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel
}

// Publish delivers the event to every live subscriber of its project.
func (h *Hub) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[evt.ProjectID] {
		select {
		case ch <- evt:
		default:
			// slow subscriber; drop
		}
	}
}
