package ws

import (
	"log/slog"
	"sync"

	"ton_miner/internal/logger"
	"ton_miner/internal/service"
)

// Hub fans snapshots out to every open connection of a user
type Hub struct {
	mu      sync.RWMutex
	clients map[int64]map[*Client]struct{}
	log     *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[int64]map[*Client]struct{}),
		log:     logger.Component("ws_hub"),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	set, ok := h.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.UserID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("client registered", "user_id", c.UserID)
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.UserID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.Send)
	if len(set) == 0 {
		delete(h.clients, c.UserID)
	}
	h.log.Debug("client unregistered", "user_id", c.UserID)
}

func (h *Hub) HasSubscribers(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Connections counts open connections across all users
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// PublishSnapshot never blocks: a client whose buffer is full misses the frame,
// the next tick carries the full state anyway.
func (h *Hub) PublishSnapshot(userID int64, snap service.Snapshot) {
	if !h.HasSubscribers(userID) {
		return
	}
	msg, err := encode(MsgSnapshot, snap)
	if err != nil {
		h.log.Error("failed to encode snapshot", "user_id", userID, "error", err)
		return
	}
	h.send(userID, msg)
}

func (h *Hub) send(userID int64, msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[userID] {
		select {
		case c.Send <- msg:
		default:
			h.log.Warn("client send buffer full, dropping frame", "user_id", userID)
		}
	}
}
