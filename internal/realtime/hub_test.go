package realtime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func drain(c *Client) []Envelope {
	var out []Envelope
	for {
		select {
		case env := <-c.OutChan:
			out = append(out, env)
		default:
			return out
		}
	}
}

func TestEmitToGroupReachesConnectedMembersOnly(t *testing.T) {
	h := NewHub(quietLogger())
	group := uuid.New()
	a := NewClient(uuid.New(), CodecJSON, 4, quietLogger())
	b := NewClient(uuid.New(), CodecJSON, 4, quietLogger())
	outsider := NewClient(uuid.New(), CodecJSON, 4, quietLogger())
	for _, c := range []*Client{a, b, outsider} {
		h.Register(c)
	}
	h.JoinGroup(group, a.UserID)
	h.JoinGroup(group, b.UserID)
	h.JoinGroup(group, uuid.New()) // offline member

	h.EmitToGroup(group, "frame", map[string]int{"tick": 1})

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(outsider))
	assert.Len(t, h.groups[group], 3)
}

func TestLeaveGroupDropsEmptyGroup(t *testing.T) {
	h := NewHub(quietLogger())
	group, user := uuid.New(), uuid.New()
	h.JoinGroup(group, user)
	h.LeaveGroup(group, user)
	h.LeaveGroup(group, user)

	assert.NotContains(t, h.groups, group)
}

func TestGroupMembershipSurvivesReconnect(t *testing.T) {
	h := NewHub(quietLogger())
	group, user := uuid.New(), uuid.New()
	h.JoinGroup(group, user)

	first := NewClient(user, CodecJSON, 4, quietLogger())
	h.Register(first)
	second := NewClient(user, CodecJSON, 4, quietLogger())
	assert.Same(t, first, h.Register(second))
	assert.False(t, h.Unregister(first), "a replaced client must not unregister its successor")

	h.EmitToGroup(group, "score-update", nil)
	assert.Empty(t, drain(first))
	assert.Len(t, drain(second), 1)
	assert.True(t, h.Connected(user))
}

func TestWriteDropsWhenQueueFull(t *testing.T) {
	c := NewClient(uuid.New(), CodecJSON, 1, quietLogger())
	assert.True(t, c.Write(Envelope{Type: "a"}))
	assert.False(t, c.Write(Envelope{Type: "b"}))
	assert.Equal(t, "a", (<-c.OutChan).Type)
}

func TestCodecRoundTrip(t *testing.T) {
	type move struct {
		Axis      string  `json:"axis"`
		Direction float64 `json:"direction"`
	}
	for _, codec := range []Codec{CodecJSON, CodecMsgpack} {
		t.Run(codec.String(), func(t *testing.T) {
			data, err := codec.Encode(Envelope{Type: "paddle-command", Payload: move{Axis: "y", Direction: -1}})
			require.NoError(t, err)

			in, err := codec.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, "paddle-command", in.Type)

			var got move
			require.NoError(t, in.Bind(&got))
			assert.Equal(t, move{Axis: "y", Direction: -1}, got)
		})
	}
}

func TestDecodeRejectsMissingType(t *testing.T) {
	_, err := CodecJSON.Decode([]byte(`{"payload":{}}`))
	assert.Error(t, err)
	_, err = CodecJSON.Decode([]byte(`not json`))
	assert.Error(t, err)
}

// serve starts a websocket endpoint that registers every connection as user and echoes each
// inbound type back as an event.
func serve(t *testing.T, h *Hub, user uuid.UUID) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: Subprotocols})
		if err != nil {
			return
		}
		codec, _ := CodecFor(conn.Subprotocol())
		c := NewClient(user, codec, 8, quietLogger())
		h.Serve(r.Context(), conn, c, func(ctx context.Context, c *Client, msg Inbound) {
			c.Write(Envelope{Type: "echo", Payload: msg.Type})
		})
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestServeJSON(t *testing.T) {
	h := NewHub(quietLogger())
	user := uuid.New()
	url := serve(t, h, user)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{SubprotocolJSON}})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{"type":"get-game-info"}`)))
	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var env struct {
		Type    string `json:"type"`
		Payload string `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, "echo", env.Type)
	assert.Equal(t, "get-game-info", env.Payload)

	require.Eventually(t, func() bool { return h.Connected(user) }, time.Second, 10*time.Millisecond)
	h.EmitToUser(user, "frame", map[string]int{"tick": 7})
	_, data, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"frame","payload":{"tick":7}}`, string(data))
}

func TestServeMsgpack(t *testing.T) {
	h := NewHub(quietLogger())
	url := serve(t, h, uuid.New())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{SubprotocolMsgpack}})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")
	assert.Equal(t, SubprotocolMsgpack, conn.Subprotocol())

	frame, err := msgpack.Marshal(map[string]interface{}{"type": "ready-to-play"})
	require.NoError(t, err)
	require.NoError(t, conn.Write(ctx, websocket.MessageBinary, frame))

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, typ)
	var env map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(data, &env))
	assert.Equal(t, "echo", env["type"])
	assert.Equal(t, "ready-to-play", env["payload"])
}

func TestServeRejectsGarbage(t *testing.T) {
	h := NewHub(quietLogger())
	url := serve(t, h, uuid.New())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{SubprotocolJSON}})
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(`{{`)))
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"error"`)
}
