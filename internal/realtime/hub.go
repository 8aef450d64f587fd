// internal/realtime/hub.go
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// Dispatcher handles one decoded client message.
type Dispatcher func(ctx context.Context, c *Client, msg Inbound)

// Hub addresses users and lobby groups. Each user has at most one live connection; a newer one
// replaces the older. Group membership is tracked per user, so it survives reconnects.
type Hub struct {
	log logrus.FieldLogger

	mu      sync.RWMutex
	clients map[uuid.UUID]*Client
	groups  map[uuid.UUID]map[uuid.UUID]struct{}
}

// NewHub builds an empty hub.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		log:     log,
		clients: make(map[uuid.UUID]*Client),
		groups:  make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Register makes c the user's live connection and returns the one it replaced, if any.
func (h *Hub) Register(c *Client) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.clients[c.UserID]
	h.clients[c.UserID] = c
	return old
}

// Unregister removes c if it is still the user's live connection.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.UserID] != c {
		return false
	}
	delete(h.clients, c.UserID)
	return true
}

// Connected reports whether the user has a live connection.
func (h *Hub) Connected(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// EmitToUser delivers an event to one user. Offline users miss it.
func (h *Hub) EmitToUser(userID uuid.UUID, event string, payload interface{}) {
	h.mu.RLock()
	c := h.clients[userID]
	h.mu.RUnlock()
	if c != nil {
		c.Write(Envelope{Type: event, Payload: payload})
	}
}

// EmitToGroup delivers an event to every connected member of a group.
func (h *Hub) EmitToGroup(groupID uuid.UUID, event string, payload interface{}) {
	env := Envelope{Type: event, Payload: payload}
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.groups[groupID]))
	for userID := range h.groups[groupID] {
		if c := h.clients[userID]; c != nil {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Write(env)
	}
}

// JoinGroup adds a user to a group.
func (h *Hub) JoinGroup(groupID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := h.groups[groupID]
	if g == nil {
		g = make(map[uuid.UUID]struct{})
		h.groups[groupID] = g
	}
	g[userID] = struct{}{}
}

// LeaveGroup removes a user from a group; the group is dropped once empty.
func (h *Hub) LeaveGroup(groupID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := h.groups[groupID]
	if g == nil {
		return
	}
	delete(g, userID)
	if len(g) == 0 {
		delete(h.groups, groupID)
	}
}

// Serve pumps c over conn until the peer disconnects, ctx ends or a newer connection for the
// same user replaces this one. It blocks in the read loop.
func (h *Hub) Serve(ctx context.Context, conn *websocket.Conn, c *Client, dispatch Dispatcher) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	defer c.Close()

	if old := h.Register(c); old != nil {
		c.log.Info("replacing previous connection")
		old.Close()
	}
	defer h.Unregister(c)

	go h.writePump(ctx, conn, c)
	h.readPump(ctx, conn, c, dispatch)
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, c *Client, dispatch Dispatcher) {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				c.log.Debug("websocket closed by peer")
			case errors.Is(err, context.Canceled):
			default:
				c.log.WithError(err).WithField("close_status", status).Warn("websocket read error")
			}
			return
		}
		if typ != c.Codec.MessageType() {
			c.log.WithField("message_type", typ).Warn("ignoring frame of the wrong type for the negotiated codec")
			continue
		}

		msg, err := c.Codec.Decode(data)
		if err != nil {
			c.log.WithError(err).Warn("invalid inbound message")
			c.WriteError("invalid message format")
			continue
		}
		dispatch(ctx, c, msg)
	}
}

func (h *Hub) writePump(ctx context.Context, conn *websocket.Conn, c *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer conn.Close(websocket.StatusGoingAway, "connection closing")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.log.WithError(err).Debug("ping failed")
				c.Close()
				return
			}
		case env := <-c.OutChan:
			data, err := c.Codec.Encode(env)
			if err != nil {
				c.log.WithError(err).WithField("event", env.Type).Warn("failed to encode outbound message")
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = conn.Write(writeCtx, c.Codec.MessageType(), data)
			cancel()
			if err != nil {
				c.log.WithError(err).Warn("websocket write failed")
				c.Close()
				return
			}
		}
	}
}
