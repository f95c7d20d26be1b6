package server

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
)

// Live reload event names
const (
	EventReload = "reload"
	EventError  = "error"
)

// Event is one server-sent event
type Event struct {
	Name string
	Data string // JSON-encoded payload
}

// Format renders the event in the text/event-stream wire format
func (e Event) Format() string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", e.Name, e.Data)
}

func newEvent(name string, payload interface{}) Event {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[DevServer] Failed to encode %s event: %v", name, err)
		data = []byte("{}")
	}
	return Event{Name: name, Data: string(data)}
}

// hub fans events out to connected live reload clients. Slow clients miss
// events rather than block the broadcaster.
type hub struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
}

func newHub() *hub {
	return &hub{clients: make(map[chan Event]struct{})}
}

func (h *hub) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
	}
}

func (h *hub) broadcast(evt Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent := 0
	for ch := range h.clients {
		select {
		case ch <- evt:
			sent++
		default:
		}
	}
	return sent
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
