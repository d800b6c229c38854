package notifications

import (
	"context"
	"errors"
	"sync"

	"mybuddy/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	maxConnsPerModerator = 5
	maxTotalConns        = 1000
)

var (
	ErrHubFull       = errors.New("moderation feed connection limit reached")
	ErrModeratorFull = errors.New("moderator connection limit reached")
	ErrHubClosed     = errors.New("moderation feed is shutting down")
)

var hubLog = observability.NewWSLogger("moderation")

// Hub holds the moderation feed's WebSocket clients keyed by moderator ID.
type Hub struct {
	mu       sync.RWMutex
	conns    map[uint]map[*Client]struct{}
	total    int
	closed   bool
	presence *Presence
	log      *observability.WSLogger
}

// NewHub creates a Hub. rdb may be nil, in which case presence is process-local.
func NewHub(rdb *redis.Client) *Hub {
	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		presence: NewPresence(rdb, PresenceConfig{}),
		log:      hubLog,
	}
}

// Name labels this hub in metrics and logs.
func (h *Hub) Name() string { return "moderation" }

// Register attaches conn for moderator userID.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.total >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrHubFull
	}
	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if len(m) >= maxConnsPerModerator {
		h.mu.Unlock()
		return nil, ErrModeratorFull
	}

	client := newClient(h, conn, userID)
	m[client] = struct{}{}
	h.total++
	h.mu.Unlock()

	observability.WebSocketConnections.Inc()
	h.presence.Register(context.Background(), userID)
	h.log.LogConnect(context.Background(), userID)
	return client, nil
}

// UnregisterClient detaches client and closes its send channel. Unknown clients are ignored.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	m, ok := h.conns[client.UserID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := m[client]; !exists {
		h.mu.Unlock()
		return
	}
	delete(m, client)
	if len(m) == 0 {
		delete(h.conns, client.UserID)
	}
	h.total--
	close(client.Send)
	h.mu.Unlock()

	observability.WebSocketConnections.Dec()
	h.presence.Unregister(context.Background(), client.UserID)
}

// Broadcast queues message for every client and returns how many accepted it.
func (h *Hub) Broadcast(message []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, clients := range h.conns {
		for c := range clients {
			if c.trySend(message) {
				delivered++
			}
		}
	}
	return delivered
}

// Count returns the number of attached clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

// OnlineModerators lists moderators connected to any replica.
func (h *Hub) OnlineModerators(ctx context.Context) []uint {
	return h.presence.Online(ctx)
}

// StartWiring forwards events published by other replicas to this hub's clients.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.Subscribe(ctx, func(event []byte) {
		h.Broadcast(event)
	})
}

// Shutdown detaches every client. Closing a client's send channel makes its
// WritePump send a going-away close frame.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var detached []uint
	for userID, clients := range h.conns {
		for c := range clients {
			close(c.Send)
			detached = append(detached, userID)
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, userID := range detached {
		h.presence.Unregister(ctx, userID)
	}
	observability.WebSocketConnections.Sub(float64(len(detached)))
	h.presence.Stop()
	h.log.LogLifecycle(ctx, "shutdown", map[string]interface{}{"clients": len(detached)})
	return nil
}
