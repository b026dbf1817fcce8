package websocket

import (
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	StageStarted  = "started"
	StageAudited  = "audited"
	StageFixed    = "fixed"
	StageFinished = "finished"
	StageFailed   = "failed"
)

// ProgressEvent is one step of an integrity run as seen by live clients.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Scope     string    `json:"scope"`
	Issues    int       `json:"issues"`
	Critical  int       `json:"critical"`
	Applied   int       `json:"applied,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	Report    string    `json:"report,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub fans progress events out to every connected operator.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(operatorID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[operatorID] == nil {
		h.clients[operatorID] = make(map[*Client]struct{})
	}
	h.clients[operatorID][client] = struct{}{}
}

func (h *Hub) Unregister(operatorID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[operatorID] == nil {
		return
	}
	delete(h.clients[operatorID], client)
	if len(h.clients[operatorID]) == 0 {
		delete(h.clients, operatorID)
	}
}

func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Publish never blocks: a client whose buffer is full misses the event.
func (h *Hub) Publish(event ProgressEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, set := range h.clients {
		for client := range set {
			select {
			case client.send <- payload:
			default:
			}
		}
	}
}
