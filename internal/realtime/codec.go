// internal/realtime/codec.go
package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/coder/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Subprotocols a client may negotiate. The first is the default.
const (
	SubprotocolJSON    = "arena"
	SubprotocolMsgpack = "arena.msgpack"
)

// Subprotocols lists every accepted subprotocol, in preference order.
var Subprotocols = []string{SubprotocolJSON, SubprotocolMsgpack}

// Codec frames envelopes on one connection.
type Codec int

const (
	CodecJSON Codec = iota
	CodecMsgpack
)

// CodecFor maps a negotiated subprotocol to its codec. ok is false for unknown protocols.
func CodecFor(subprotocol string) (c Codec, ok bool) {
	switch subprotocol {
	case SubprotocolJSON:
		return CodecJSON, true
	case SubprotocolMsgpack:
		return CodecMsgpack, true
	default:
		return CodecJSON, false
	}
}

func (c Codec) String() string {
	if c == CodecMsgpack {
		return "msgpack"
	}
	return "json"
}

// MessageType is the websocket frame type the codec writes.
func (c Codec) MessageType() websocket.MessageType {
	if c == CodecMsgpack {
		return websocket.MessageBinary
	}
	return websocket.MessageText
}

// Envelope is one outbound event.
type Envelope struct {
	Type    string      `json:"type" msgpack:"type"`
	Payload interface{} `json:"payload,omitempty" msgpack:"payload,omitempty"`
}

// Encode frames env. msgpack falls back to json tags so both codecs share field names.
func (c Codec) Encode(env Envelope) ([]byte, error) {
	if c != CodecMsgpack {
		return json.Marshal(env)
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.UseCompactInts(true)
	if err := enc.Encode(env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Inbound is one client message. Its payload stays encoded until the dispatcher knows what to
// decode it into.
type Inbound struct {
	Type    string
	codec   Codec
	payload []byte
}

type jsonInbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type msgpackInbound struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// Decode parses a client frame.
func (c Codec) Decode(data []byte) (Inbound, error) {
	if c == CodecMsgpack {
		var in msgpackInbound
		if err := msgpack.Unmarshal(data, &in); err != nil {
			return Inbound{}, err
		}
		if in.Type == "" {
			return Inbound{}, fmt.Errorf("missing message type")
		}
		return Inbound{Type: in.Type, codec: c, payload: in.Payload}, nil
	}
	var in jsonInbound
	if err := json.Unmarshal(data, &in); err != nil {
		return Inbound{}, err
	}
	if in.Type == "" {
		return Inbound{}, fmt.Errorf("missing message type")
	}
	return Inbound{Type: in.Type, codec: c, payload: in.Payload}, nil
}

// NewInbound builds a JSON-framed message, for callers that already hold the parts.
func NewInbound(typ string, payload []byte) Inbound {
	return Inbound{Type: typ, codec: CodecJSON, payload: payload}
}

// Bind decodes the payload into v. An absent payload leaves v untouched.
func (m Inbound) Bind(v interface{}) error {
	if len(m.payload) == 0 || string(m.payload) == "null" {
		return nil
	}
	if m.codec == CodecMsgpack {
		dec := msgpack.NewDecoder(bytes.NewReader(m.payload))
		dec.SetCustomStructTag("json")
		return dec.Decode(v)
	}
	return json.Unmarshal(m.payload, v)
}
