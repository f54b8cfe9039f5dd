package hub

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"campuspulse/internal/core/domain"
	"campuspulse/internal/core/ports"
)

// Client message types accepted on the bidirectional channel.
const (
	msgAuthenticate          = "authenticate"
	msgSubscribeOrganization = "subscribe:organization"
	msgSubscribeCampus       = "subscribe:campus"
	msgSubscribeBuilding     = "subscribe:building"
	msgSubscribeHeatmap      = "subscribe:heatmap"
	msgUnsubscribe           = "unsubscribe"
)

type clientMessage struct {
	Type           string `json:"type"`
	Token          string `json:"token,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	CampusID       string `json:"campus_id,omitempty"`
	BuildingID     string `json:"building_id,omitempty"`
	Room           string `json:"room,omitempty"`
}

type ackFrame struct {
	Type            string `json:"type"`
	Room            string `json:"room,omitempty"`
	SubscriberCount int    `json:"subscriber_count,omitempty"`
	UserID          string `json:"user_id,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wsConn is the subset of *websocket.Conn the client uses; narrowed so tests
// can run a client without a live socket.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Client is one bidirectional-channel subscriber. Lifecycle:
// Connecting -> Authenticated -> Subscribed(rooms) -> Disconnected.
type Client struct {
	id   string
	conn wsConn
	hub  *Hub

	send chan interface{}
	done chan struct{}

	authenticated atomic.Bool
	claims        *ports.AuthClaims

	// rooms is guarded by the hub's mutex.
	rooms map[string]domain.RoomKey

	closeOnce sync.Once
}

func newClient(id string, conn wsConn, h *Hub) *Client {
	return &Client{
		id:    id,
		conn:  conn,
		hub:   h,
		send:  make(chan interface{}, h.opts.SendBufferSize),
		done:  make(chan struct{}),
		rooms: make(map[string]domain.RoomKey),
	}
}

// Authenticated reports whether the connection presented a valid token.
func (c *Client) Authenticated() bool {
	return c.authenticated.Load()
}

// trySend enqueues a frame without ever blocking. When the buffer is full
// the oldest frame is evicted first; a dashboard only cares about the
// latest state.
func (c *Client) trySend(v interface{}) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- v:
		return true
	default:
	}

	select {
	case <-c.send:
	default:
	}
	select {
	case c.send <- v:
		return true
	default:
		return false
	}
}

// readPump consumes client messages until the connection drops, then cleans
// up all room memberships in one pass.
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongTimeout))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.hub.opts.PongTimeout))

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.trySend(errorFrame{Type: "error", Message: "malformed message"})
			continue
		}

		if fatal := c.handleMessage(msg); fatal {
			return
		}
	}
}

// handleMessage processes one inbound message. It returns true when the
// error is fatal for the connection (authentication failures only).
func (c *Client) handleMessage(msg clientMessage) bool {
	switch msg.Type {
	case msgAuthenticate:
		claims, err := c.hub.auth.ValidateToken(msg.Token)
		if err != nil {
			c.hub.logger.Infow("authentication failed", "client_id", c.id, "error", err)
			c.trySend(errorFrame{Type: "error", Message: "authentication failed"})
			return true
		}
		c.claims = claims
		c.authenticated.Store(true)
		c.trySend(ackFrame{Type: "authenticated", UserID: string(claims.UserID)})
		return false

	case msgSubscribeOrganization, msgSubscribeCampus, msgSubscribeBuilding, msgSubscribeHeatmap:
		room, err := roomFromMessage(msg)
		if err != nil {
			c.trySend(errorFrame{Type: "error", Message: err.Error()})
			return false
		}
		_, count, err := c.hub.Subscribe(c, room)
		if err != nil {
			c.trySend(errorFrame{Type: "error", Message: err.Error()})
			// Unauthenticated subscribe is an authorization error,
			// fatal for the connection.
			return err == domain.ErrNotAuthenticated
		}
		c.trySend(ackFrame{Type: "subscribed", Room: room.String(), SubscriberCount: count})
		return false

	case msgUnsubscribe:
		room, err := domain.ParseRoomKey(msg.Room)
		if err != nil {
			c.trySend(errorFrame{Type: "error", Message: err.Error()})
			return false
		}
		c.hub.Unsubscribe(c, room)
		c.trySend(ackFrame{Type: "unsubscribed", Room: room.String()})
		return false

	default:
		c.trySend(errorFrame{Type: "error", Message: fmt.Sprintf("unknown message type: %s", msg.Type)})
		return false
	}
}

func roomFromMessage(msg clientMessage) (domain.RoomKey, error) {
	org := domain.OrganizationID(msg.OrganizationID)
	if org == "" {
		return domain.RoomKey{}, fmt.Errorf("organization_id is required")
	}
	switch msg.Type {
	case msgSubscribeOrganization:
		return domain.OrganizationRoom(org), nil
	case msgSubscribeCampus:
		if msg.CampusID == "" {
			return domain.RoomKey{}, fmt.Errorf("campus_id is required")
		}
		return domain.CampusRoom(org, domain.CampusID(msg.CampusID)), nil
	case msgSubscribeBuilding:
		if msg.BuildingID == "" {
			return domain.RoomKey{}, fmt.Errorf("building_id is required")
		}
		return domain.BuildingRoom(org, domain.BuildingID(msg.BuildingID)), nil
	case msgSubscribeHeatmap:
		return domain.HeatmapRoom(org), nil
	}
	return domain.RoomKey{}, fmt.Errorf("unknown subscribe type: %s", msg.Type)
}

// writePump drains the outbound queue and keeps the connection alive with
// pings. It is the only goroutine writing to the socket and it owns the
// socket close, which also unblocks readPump.
func (c *Client) writePump() {
	pingTicker := time.NewTicker(c.hub.opts.PingInterval)
	defer pingTicker.Stop()
	if c.conn != nil {
		defer c.conn.Close()
	}

	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				c.hub.logger.Infow("write failed, dropping client", "client_id", c.id, "error", err)
				c.close()
				return
			}
		case <-pingTicker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if err := c.conn.WriteMessage(pingMessageType, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			c.drainSend()
			return
		}
	}
}

// drainSend flushes frames that were enqueued before shutdown, so a terminal
// error frame still reaches the client. trySend refuses new frames once done
// is closed, bounding the drain to the buffer.
func (c *Client) drainSend() {
	for {
		select {
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.opts.WriteTimeout))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// close tears the connection down once: signal shutdown and clean up all
// room memberships. The socket itself is closed by writePump after it
// drains.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.removeClient(c)
		c.hub.logger.Infow("client disconnected", "client_id", c.id)
	})
}
