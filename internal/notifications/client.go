package notifications

import (
	"context"
	"time"

	"mybuddy/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// The feed is server-to-client; inbound frames are only control traffic.
	maxMessageSize = 1024

	sendBufferSize = 64
)

var dropNotice = []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)

// Client is one moderator WebSocket connection attached to a Hub.
type Client struct {
	hub *Hub

	// Conn is nil for clients registered without a socket (tests).
	Conn *websocket.Conn

	// Send is closed by the hub when the client is removed.
	Send chan []byte

	UserID uint
}

func newClient(hub *Hub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, sendBufferSize),
	}
}

// ReadPump drains inbound frames until the peer goes away, then detaches the client.
// Pongs refresh the moderator's presence.
func (c *Client) ReadPump() {
	reason := "closed"
	defer func() {
		c.hub.UnregisterClient(c)
		_ = c.Conn.Close()
		c.hub.log.LogDisconnect(context.Background(), c.UserID, reason)
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.hub.presence.Touch(context.Background(), c.UserID)
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				reason = "error"
				c.hub.log.LogError(context.Background(), c.UserID, err, "read")
			}
			return
		}
	}
}

// WritePump writes queued events and keepalive pings until Send is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
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

// trySend queues message without blocking. When the buffer is full the message is
// dropped and the oldest queued message is replaced by a drop notice so the client
// knows to re-fetch the report list. Callers must hold the hub lock.
func (c *Client) trySend(message []byte) bool {
	select {
	case c.Send <- message:
		return true
	default:
	}

	observability.WebSocketBackpressureDrops.WithLabelValues(c.hub.Name(), "full").Inc()
	select {
	case <-c.Send:
	default:
	}
	select {
	case c.Send <- dropNotice:
	default:
	}
	return false
}
