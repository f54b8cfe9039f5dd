package hub

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"
	"campuspulse/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const pingMessageType = websocket.PingMessage

// ErrHubClosed is returned by Subscribe and Publish after Close.
var ErrHubClosed = errors.New("hub is closed")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type hubMetrics interface {
	ClientConnected()
	ClientDisconnected()
	EventPublished(eventType string)
	FrameDropped()
}

// Options tunes connection handling.
type Options struct {
	PingInterval    time.Duration
	PongTimeout     time.Duration
	WriteTimeout    time.Duration
	SendBufferSize  int
	MaxMessageBytes int64
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		PingInterval:    30 * time.Second,
		PongTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		SendBufferSize:  64,
		MaxMessageBytes: 64 * 1024,
	}
}

// Hub maintains the hierarchy of topic rooms and fans domain events out to
// their subscribers. Room membership is guarded by a single RWMutex; publish
// copies the subscriber set under the read lock and pushes outside it, so a
// stalled client can never block the publisher or other subscribers.
type Hub struct {
	auth    ports.AuthService
	opts    Options
	metrics hubMetrics
	logger  *zap.SugaredLogger

	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	closed  bool
}

// New creates a hub. metrics may be nil.
func New(auth ports.AuthService, opts Options, metrics hubMetrics, logger *zap.SugaredLogger) *Hub {
	return &Hub{
		auth:    auth,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
	}
}

// HandleWebSocket upgrades the request and runs the connection until it
// disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(utils.GenerateClientID(), conn, h)
	h.addClient(client)
	h.logger.Infow("client connected", "client_id", client.id)

	go client.writePump()
	client.readPump()
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ClientConnected()
	}
}

// Subscribe adds the client to a room. Idempotent: subscribing twice is a
// no-op that returns the current count. Unauthenticated clients are
// rejected and no membership is created.
func (h *Hub) Subscribe(c *Client, room domain.RoomKey) (bool, int, error) {
	if !c.Authenticated() {
		return false, 0, domain.ErrNotAuthenticated
	}
	if err := room.Validate(); err != nil {
		return false, 0, err
	}

	key := room.String()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false, 0, ErrHubClosed
	}

	members, ok := h.rooms[key]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[key] = members
	}
	if _, already := members[c]; already {
		return false, len(members), nil
	}
	members[c] = struct{}{}
	c.rooms[key] = room
	return true, len(members), nil
}

// Unsubscribe removes the client from a room; an emptied room is deleted so
// no memory is retained for it.
func (h *Hub) Unsubscribe(c *Client, room domain.RoomKey) {
	key := room.String()

	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[key]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, key)
		}
	}
	delete(c.rooms, key)
}

// Publish validates the event envelope and pushes it to every subscriber of
// each target room. Delivery is fire-and-forget: a full outbound buffer
// drops the oldest frame for that subscriber and never blocks this call.
func (h *Hub) Publish(env *domain.EventEnvelope) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("rejecting malformed event: %w", err)
	}

	targets := domain.RoomsForEvent(env)

	// Copy the recipient set under the read lock, push outside it.
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	recipients := make(map[*Client]struct{})
	for _, room := range targets {
		for c := range h.rooms[room.String()] {
			recipients[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	for c := range recipients {
		if !c.trySend(env) {
			h.logger.Warnw("subscriber buffer full, dropped frame",
				"client_id", c.id,
				"event_type", env.Type,
			)
			if h.metrics != nil {
				h.metrics.FrameDropped()
			}
		}
	}

	if h.metrics != nil {
		h.metrics.EventPublished(string(env.Type))
	}
	return nil
}

// Notify implements ports.EventSink for the change notifier.
func (h *Hub) Notify(env *domain.EventEnvelope) {
	if err := h.Publish(env); err != nil {
		h.logger.Warnw("dropping event at hub boundary", "error", err)
	}
}

// removeClient drops all room memberships for the client in one pass.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	for key := range c.rooms {
		if members, ok := h.rooms[key]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, key)
			}
		}
	}
	c.rooms = make(map[string]domain.RoomKey)
	_, wasTracked := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if wasTracked && h.metrics != nil {
		h.metrics.ClientDisconnected()
	}
}

// RoomStats is a snapshot of current room membership for the ops endpoint.
type RoomStats struct {
	Rooms            map[string]int `json:"rooms"`
	ConnectedClients int            `json:"connected_clients"`
}

// Stats returns current per-room subscriber counts.
func (h *Hub) Stats() RoomStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := RoomStats{
		Rooms:            make(map[string]int, len(h.rooms)),
		ConnectedClients: len(h.clients),
	}
	for key, members := range h.rooms {
		stats.Rooms[key] = len(members)
	}
	return stats
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.closed = true
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}
