// Package websocket pushes change notifications to the browsers of one
// family. Messages carry no task or score data; clients refetch.
package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Entities announced over the hub.
const (
	EntityTask        = "task"
	EntityTaskDef     = "task_definition"
	EntityMember      = "member"
	EntityTrivia      = "trivia"
	EntityLeaderboard = "leaderboard"
)

type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage derives Type as "<entity>_<action>".
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   entity + "_" + action,
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Notifier is implemented by Hub. Handlers depend on it so tests can pass a
// no-op or recording implementation.
type Notifier interface {
	Broadcast(familyID int64, msg Message)
}

// Hub keeps connected clients grouped by family.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.familyID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.familyID] = room
	}
	room[c] = struct{}{}
}

// Unregister removes the client and closes its send channel. Calling it twice
// is harmless.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.familyID]
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.familyID)
	}
}

// Broadcast queues msg for every client of familyID. Clients with a full
// buffer miss the message.
func (h *Hub) Broadcast(familyID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for c := range h.rooms[familyID] {
		select {
		case c.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Debug("broadcast dropped", "family_id", familyID, "type", msg.Type, "clients", dropped)
	}
}

// ClientCount returns the number of clients connected for familyID.
func (h *Hub) ClientCount(familyID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[familyID])
}
