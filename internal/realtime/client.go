// internal/realtime/client.go
package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultBuffer is how many outbound envelopes a client may have queued before new ones are
// dropped.
const DefaultBuffer = 64

// Client is one live websocket connection for a user.
type Client struct {
	UserID  uuid.UUID
	Codec   Codec
	OutChan chan Envelope

	log       logrus.FieldLogger
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewClient builds a client with a buffered outbound queue.
func NewClient(userID uuid.UUID, codec Codec, buffer int, log logrus.FieldLogger) *Client {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Client{
		UserID:  userID,
		Codec:   codec,
		OutChan: make(chan Envelope, buffer),
		log:     log.WithField("user_id", userID),
		cancel:  func() {},
	}
}

// Write queues env without blocking. A full queue drops env: delivery is best-effort and a slow
// reader must not stall the match loop.
func (c *Client) Write(env Envelope) bool {
	select {
	case c.OutChan <- env:
		return true
	default:
		c.log.WithField("event", env.Type).Warn("outbound queue full, dropping message")
		return false
	}
}

// WriteError sends an error event to this client only.
func (c *Client) WriteError(msg string) {
	c.Write(Envelope{Type: EventError, Payload: ErrorPayload{Message: msg}})
}

// Close stops the client's pumps. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { c.cancel() })
}

// EventError carries a rejected inbound command back to its sender.
const EventError = "error"

type ErrorPayload struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}
