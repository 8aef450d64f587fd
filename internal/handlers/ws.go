// internal/handlers/ws.go
package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/game"
	"github.com/jason-s-yu/pongarena/internal/middleware"
	"github.com/jason-s-yu/pongarena/internal/realtime"
)

// Inbound message types.
const (
	MsgReadyToPlay   = "ready-to-play"
	MsgLeftMove      = "left-move"
	MsgRightMove     = "right-move"
	MsgPaddleCommand = "paddle-command"
	MsgStop          = "stop"
	MsgAbility       = "ability"
	MsgGetGameInfo   = "get-game-info"
)

type paddleCommand struct {
	Axis      string  `json:"axis"`
	Direction float64 `json:"direction"`
}

// WSHandler upgrades the caller to the realtime channel. The token may also come from ?token=
// since browsers cannot set headers on a websocket handshake.
func (s *Server) WSHandler(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   realtime.Subprotocols,
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.WithError(err).Warn("websocket accept error")
		return
	}
	defer c.CloseNow()

	codec, ok := realtime.CodecFor(c.Subprotocol())
	if !ok {
		c.Close(BadSubprotocolError, "client must speak the arena or arena.msgpack subprotocol")
		return
	}

	userID, err := s.wsUser(r)
	if err != nil {
		s.log.WithError(err).WithField("remote", r.RemoteAddr).Debug("websocket authentication failed")
		c.Close(InvalidAuthTokenError, "invalid auth token")
		return
	}

	// Restore group membership in case the hub restarted while the lobby persisted.
	if l, err := s.lobbies.FindForUser(r.Context(), userID); err == nil {
		s.hub.JoinGroup(l.ID, userID)
	}

	log := s.log.WithField("user_id", userID)
	middleware.LogWebSocketConnect(log, r.RemoteAddr, r.URL.Path, c.Subprotocol())
	client := realtime.NewClient(userID, codec, realtime.DefaultBuffer, s.log)
	s.hub.Serve(r.Context(), c, client, s.dispatch)
	middleware.LogWebSocketDisconnect(log, r.RemoteAddr, r.URL.Path, nil)

	if !s.hub.Connected(userID) {
		s.matches.Disconnect(userID)
	}
}

func (s *Server) wsUser(r *http.Request) (uuid.UUID, error) {
	if token := r.URL.Query().Get("token"); token != "" {
		return s.auth.Verify(token)
	}
	return s.auth.Authenticate(r)
}

// dispatch routes one client message. In-match input for a user outside any match is dropped
// silently; malformed input is reported to the sender only.
func (s *Server) dispatch(ctx context.Context, c *realtime.Client, msg realtime.Inbound) {
	switch msg.Type {
	case MsgReadyToPlay:
		s.matches.ReadyToPlay(c.UserID)
	case MsgLeftMove:
		s.matches.Command(c.UserID, game.LeftMove())
	case MsgRightMove:
		s.matches.Command(c.UserID, game.RightMove())
	case MsgPaddleCommand:
		var p paddleCommand
		if err := msg.Bind(&p); err != nil {
			c.WriteError("invalid paddle-command payload")
			return
		}
		cmd, err := game.Hold(p.Axis, p.Direction)
		if err != nil {
			c.WriteError(err.Error())
			return
		}
		s.matches.Command(c.UserID, cmd)
	case MsgStop:
		s.matches.Command(c.UserID, game.Command{Kind: game.CommandStop})
	case MsgAbility:
		s.matches.Command(c.UserID, game.Command{Kind: game.CommandAbility})
	case MsgGetGameInfo:
		s.matches.SendGameInfo(c.UserID)
	default:
		c.WriteError("unknown message type " + msg.Type)
	}
}
