package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"ton_miner/internal/logger"
	"ton_miner/internal/service"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
)

// SnapshotFunc loads the current account view for a refresh request
type SnapshotFunc func(ctx context.Context, userID int64) (service.Snapshot, error)

type Client struct {
	UserID int64
	Conn   *websocket.Conn
	Send   chan []byte

	hub      *Hub
	snapshot SnapshotFunc
	log      *slog.Logger
}

func NewClient(userID int64, conn *websocket.Conn, hub *Hub, snapshot SnapshotFunc) *Client {
	return &Client{
		UserID:   userID,
		Conn:     conn,
		Send:     make(chan []byte, 64),
		hub:      hub,
		snapshot: snapshot,
		log:      logger.Component("ws").With("user_id", userID),
	}
}

// Run registers the client, pushes the current snapshot and blocks until the connection closes
func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()
	c.refresh()
	c.readPump()
}

func (c *Client) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := c.snapshot(ctx, c.UserID)
	if err != nil {
		c.log.Warn("snapshot failed", "error", err)
		c.reply(MsgError, ErrorPayload{Message: "state unavailable"})
		return
	}
	c.reply(MsgSnapshot, snap)
}

func (c *Client) reply(msgType string, payload any) {
	msg, err := encode(msgType, payload)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	// Send is closed by Unregister under the write lock, so holding the read lock keeps it open
	if _, ok := c.hub.clients[c.UserID][c]; !ok {
		return
	}
	select {
	case c.Send <- msg:
	default:
	}
}

//read
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(4096)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read error", "error", err)
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.reply(MsgError, ErrorPayload{Message: "invalid message"})
			continue
		}
		switch env.Type {
		case MsgPing:
			c.reply(MsgPong, nil)
		case MsgRefresh:
			c.refresh()
		default:
			c.reply(MsgError, ErrorPayload{Message: "unknown message type"})
		}
	}
}

//write
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
