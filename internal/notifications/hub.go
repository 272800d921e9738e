package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gofiber/websocket/v2"

	"mathgenie/internal/middleware"
	"mathgenie/internal/models"
	"mathgenie/internal/observability"
)

const (
	hubName = "gallery"

	// Max connections per user
	maxConnsPerUser = 12
	// Max total connections
	maxTotalConns = 10000
)

// Hub fans gallery events out to connected websocket clients. Clients
// subscribe to the collections they are viewing; events for other
// collections are never sent to them.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]map[string]struct{}
	perUser    map[string]int
	totalConns int
	shutdown   chan struct{}
	log        *observability.WSLogger
}

// NewHub creates a hub with no connected clients.
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[*Client]map[string]struct{}),
		perUser:  make(map[string]int),
		shutdown: make(chan struct{}),
		log:      observability.NewWSLogger(hubName),
	}
}

// Register attaches a connection. userID may be empty for anonymous
// viewers; only authenticated connections count against the per-user cap.
func (h *Hub) Register(userID string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}
	if userID != "" && h.perUser[userID] >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID)
	h.clients[client] = make(map[string]struct{})
	if userID != "" {
		h.perUser[userID]++
	}
	h.totalConns++
	h.mu.Unlock()

	middleware.ActiveWebSockets.Inc()
	observability.WebSocketConnectionsTotal.Inc()
	h.log.LogConnect(context.Background(), userID)

	return client, nil
}

// UnregisterClient detaches a connection. Safe to call more than once.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	_, exists := h.clients[client]
	if exists {
		delete(h.clients, client)
		h.totalConns--
		if client.UserID != "" {
			h.perUser[client.UserID]--
			if h.perUser[client.UserID] <= 0 {
				delete(h.perUser, client.UserID)
			}
		}
	}
	h.mu.Unlock()

	if exists {
		middleware.ActiveWebSockets.Dec()
		observability.WebSocketConnectionsTotal.Dec()
		h.log.LogDisconnect(context.Background(), client.UserID, "closed")
	}
}

// clientFrame is what browsers send upward: subscription management only.
type clientFrame struct {
	Type       string `json:"type"`
	Collection string `json:"collection"`
}

func (h *Hub) handleIncoming(c *Client, message []byte) {
	var frame clientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		h.log.LogError(context.Background(), c.UserID, err, "bad_frame")
		return
	}

	switch frame.Type {
	case "subscribe":
		if _, ok := models.ParseCollection(frame.Collection); !ok {
			return
		}
		h.mu.Lock()
		if subs, ok := h.clients[c]; ok {
			subs[frame.Collection] = struct{}{}
		}
		h.mu.Unlock()
		h.log.LogSubscribe(context.Background(), c.UserID, frame.Collection, true)
	case "unsubscribe":
		h.mu.Lock()
		if subs, ok := h.clients[c]; ok {
			delete(subs, frame.Collection)
		}
		h.mu.Unlock()
		h.log.LogSubscribe(context.Background(), c.UserID, frame.Collection, false)
	}
}

// Broadcast delivers an event to every client subscribed to its
// collection.
func (h *Hub) Broadcast(event Event) {
	data, err := event.Encode()
	if err != nil {
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(event.Type).Inc()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client, subs := range h.clients {
		if _, ok := subs[event.Collection]; ok {
			client.TrySend(data)
		}
	}
}

// ConnectionCount reports the number of attached clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalConns
}

// StartWiring subscribes the hub to the Redis event stream so that
// events published by any instance reach this instance's clients.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartEventSubscriber(ctx, func(event Event) {
		h.Broadcast(event)
	})
}

// Shutdown gracefully closes all websocket connections.
func (h *Hub) Shutdown(_ context.Context) error {
	close(h.shutdown)

	h.mu.Lock()
	for client := range h.clients {
		if client.Conn == nil {
			continue
		}
		_ = client.Conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
		_ = client.Conn.Close()
	}
	h.clients = make(map[*Client]map[string]struct{})
	h.perUser = make(map[string]int)
	h.totalConns = 0
	h.mu.Unlock()

	return nil
}
