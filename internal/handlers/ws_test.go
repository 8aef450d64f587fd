package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/pongarena/internal/arena"
	"github.com/jason-s-yu/pongarena/internal/auth"
	"github.com/jason-s-yu/pongarena/internal/game"
	"github.com/jason-s-yu/pongarena/internal/lobby"
	"github.com/jason-s-yu/pongarena/internal/models"
	"github.com/jason-s-yu/pongarena/internal/realtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
}

func (p *player) dial(ctx context.Context, subprotocol string) *websocket.Conn {
	p.t.Helper()
	header := http.Header{}
	header.Set("Cookie", auth.CookieName+"="+p.token)
	conn, _, err := websocket.Dial(ctx, p.env.wsURL(), &websocket.DialOptions{
		Subprotocols: []string{subprotocol},
		HTTPHeader:   header,
	})
	require.NoError(p.t, err)
	p.t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	require.Eventually(p.t, func() bool { return p.env.hub.Connected(p.id) }, time.Second, 5*time.Millisecond)
	return conn
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn) envelope {
	t.Helper()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

// readUntil skips events until one of type typ arrives.
func readUntil(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string) envelope {
	t.Helper()
	for {
		env := readEnvelope(t, ctx, conn)
		if env.Type == typ {
			return env
		}
	}
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(msg)))
}

func TestWSDispatchesMatchInput(t *testing.T) {
	env := newTestEnv(t)
	p := env.player(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := p.dial(ctx, realtime.SubprotocolJSON)

	send(t, ctx, conn, `{"type":"ready-to-play"}`)
	send(t, ctx, conn, `{"type":"left-move"}`)
	send(t, ctx, conn, `{"type":"paddle-command","payload":{"axis":"y","direction":1}}`)
	send(t, ctx, conn, `{"type":"ability"}`)
	send(t, ctx, conn, `{"type":"get-game-info"}`)

	require.Eventually(t, func() bool {
		env.matches.mu.Lock()
		defer env.matches.mu.Unlock()
		return len(env.matches.info) == 1
	}, time.Second, 5*time.Millisecond)

	env.matches.mu.Lock()
	defer env.matches.mu.Unlock()
	require.Len(t, env.matches.commands, 3)
	assert.Equal(t, game.LeftMove(), env.matches.commands[0])
	assert.Equal(t, game.Command{Kind: game.CommandMove, Axis: arena.AxisY, Direction: 1}, env.matches.commands[1])
	assert.Equal(t, game.CommandAbility, env.matches.commands[2].Kind)
	assert.Equal(t, []uuid.UUID{p.id}, env.matches.ready)
	assert.Equal(t, []uuid.UUID{p.id}, env.matches.info)
}

func TestWSReportsBadInputToSender(t *testing.T) {
	env := newTestEnv(t)
	p := env.player(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn := p.dial(ctx, realtime.SubprotocolJSON)

	send(t, ctx, conn, `{"type":"paddle-command","payload":{"axis":"z","direction":1}}`)
	got := readUntil(t, ctx, conn, realtime.EventError)
	assert.Contains(t, string(got.Payload), "invalid axis")

	send(t, ctx, conn, `{"type":"teleport"}`)
	got = readUntil(t, ctx, conn, realtime.EventError)
	assert.Contains(t, string(got.Payload), "unknown message type")
	assert.Zero(t, env.matches.commandCount())
}

func TestWSDeliversLobbyEvents(t *testing.T) {
	env := newTestEnv(t)
	owner, guest := env.player(t), env.player(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	l := owner.lobby(http.MethodPost, "/lobbies/", lobby.CreateParams{NbPlayers: 4, Mode: models.ModeClassic, Map: models.MapClassic, Private: true}, http.StatusCreated)
	conn := owner.dial(ctx, realtime.SubprotocolJSON)

	guest.lobby(http.MethodPost, "/lobbies/"+l.ID.String()+"/join", nil, http.StatusOK)
	got := readUntil(t, ctx, conn, lobby.EventUserJoined)
	assert.Contains(t, string(got.Payload), guest.id.String())
}

func TestWSRejectsBadHandshake(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, env.wsURL(), &websocket.DialOptions{Subprotocols: []string{realtime.SubprotocolJSON}})
	require.NoError(t, err)
	_, _, err = conn.Read(ctx)
	assert.Equal(t, InvalidAuthTokenError, websocket.CloseStatus(err))

	p := env.player(t)
	conn, _, err = websocket.Dial(ctx, env.wsURL()+"?token="+p.token, &websocket.DialOptions{Subprotocols: []string{"chat"}})
	require.NoError(t, err)
	_, _, err = conn.Read(ctx)
	assert.Equal(t, BadSubprotocolError, websocket.CloseStatus(err))
}

func TestWSDisconnectIdlesPaddle(t *testing.T) {
	env := newTestEnv(t)
	p := env.player(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := p.dial(ctx, realtime.SubprotocolMsgpack)
	conn.Close(websocket.StatusNormalClosure, "bye")

	assert.Eventually(t, func() bool {
		env.matches.mu.Lock()
		defer env.matches.mu.Unlock()
		return len(env.matches.dropped) == 1 && env.matches.dropped[0] == p.id
	}, time.Second, 5*time.Millisecond)
}
