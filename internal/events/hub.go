// Package events is an in-memory activity feed for live dashboards.
package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	defaultHistory   = 100
	defaultSubBuffer = 128
)

// Event is one activity record. Data is a JSON object; it never contains
// message text.
type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

type subscriber struct {
	ch chan Event
}

// Hub fans activity out to subscribers and keeps a bounded history for
// clients that connect late or reconnect. Publish never blocks; a delivery
// to a subscriber whose buffer is full is dropped and counted.
type Hub struct {
	mu        sync.Mutex
	lastID    int64
	history   []Event
	limit     int
	subs      map[*subscriber]struct{}
	subBuffer int
	dropped   int64
}

// NewHub creates a hub that keeps the most recent history events.
func NewHub(history int) *Hub {
	if history <= 0 {
		history = defaultHistory
	}
	return &Hub{
		history:   make([]Event, 0, history),
		limit:     history,
		subs:      make(map[*subscriber]struct{}),
		subBuffer: defaultSubBuffer,
	}
}

// Publish assigns the next id and delivers the event. data is encoded as
// JSON; nil or unencodable data becomes {}.
func (h *Hub) Publish(eventType string, data any) {
	payload := json.RawMessage(`{}`)
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	ev := Event{ID: h.lastID, Type: eventType, At: time.Now().UTC(), Data: payload}

	if len(h.history) == h.limit {
		copy(h.history, h.history[1:])
		h.history = h.history[:h.limit-1]
	}
	h.history = append(h.history, ev)

	for sub := range h.subs {
		select {
		case sub.ch <- ev:
		default:
			h.dropped++
		}
	}
}

// Subscribe registers a listener for future events. The returned func
// unregisters it and closes the channel; calling it again is a no-op.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.subBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub.ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(sub.ch)
		}
	}
}

// SnapshotSince copies the retained events newer than lastID, oldest first.
func (h *Hub) SnapshotSince(lastID int64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	// History ids are contiguous, so the first newer event can be located
	// directly.
	start := 0
	if n := len(h.history); n > 0 && lastID >= h.history[0].ID {
		start = min(int(lastID-h.history[0].ID)+1, n)
	}
	return append([]Event(nil), h.history[start:]...)
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped counts deliveries skipped for slow subscribers.
func (h *Hub) Dropped() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
