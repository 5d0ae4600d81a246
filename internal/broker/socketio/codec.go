package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Engine.IO v4 packet types, the first byte of every frame.
const (
	engineOpen    = '0'
	engineClose   = '1'
	enginePing    = '2'
	enginePong    = '3'
	engineMessage = '4'
	engineNoop    = '6'
)

// Socket.IO v5 packet types, the byte after an Engine.IO message type.
const (
	socketConnect      = '0'
	socketDisconnect   = '1'
	socketEvent        = '2'
	socketConnectError = '4'
)

type packetKind int

const (
	kindOther packetKind = iota
	kindOpen
	kindClose
	kindPing
	kindNoop
	kindConnect
	kindConnectError
	kindDisconnect
	kindEvent
)

var errMalformed = errors.New("malformed socket.io packet")

// packet is a decoded frame. data holds the open/connect JSON body or the
// first event argument.
type packet struct {
	kind  packetKind
	event string
	data  json.RawMessage
}

type openPayload struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

func decode(frame []byte) (packet, error) {
	if len(frame) == 0 {
		return packet{}, errMalformed
	}
	switch frame[0] {
	case engineOpen:
		return packet{kind: kindOpen, data: json.RawMessage(frame[1:])}, nil
	case engineClose:
		return packet{kind: kindClose}, nil
	case enginePing:
		return packet{kind: kindPing}, nil
	case engineNoop, enginePong:
		return packet{kind: kindNoop}, nil
	case engineMessage:
		return decodeMessage(frame[1:])
	}
	return packet{kind: kindOther}, nil
}

func decodeMessage(body []byte) (packet, error) {
	if len(body) == 0 {
		return packet{}, errMalformed
	}
	kind := body[0]
	rest := skipNamespace(body[1:])
	switch kind {
	case socketConnect:
		return packet{kind: kindConnect, data: json.RawMessage(rest)}, nil
	case socketConnectError:
		return packet{kind: kindConnectError, data: json.RawMessage(rest)}, nil
	case socketDisconnect:
		return packet{kind: kindDisconnect}, nil
	case socketEvent:
		return decodeEvent(rest)
	}
	return packet{kind: kindOther}, nil
}

func decodeEvent(body []byte) (packet, error) {
	// An ack id may precede the argument array.
	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
	}
	var args []json.RawMessage
	if err := json.Unmarshal(body[i:], &args); err != nil {
		return packet{}, fmt.Errorf("%w: %w", errMalformed, err)
	}
	if len(args) == 0 {
		return packet{}, fmt.Errorf("%w: event without name", errMalformed)
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return packet{}, fmt.Errorf("%w: event name: %w", errMalformed, err)
	}
	p := packet{kind: kindEvent, event: name, data: json.RawMessage("null")}
	if len(args) > 1 {
		p.data = args[1]
	}
	return p, nil
}

// skipNamespace drops a leading "/ns," so only the default namespace is seen.
func skipNamespace(b []byte) []byte {
	if len(b) == 0 || b[0] != '/' {
		return b
	}
	for i, c := range b {
		if c == ',' {
			return b[i+1:]
		}
	}
	return nil
}

func encodeEvent(event string, payload any) ([]byte, error) {
	args, err := json.Marshal([]any{event, payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	frame := make([]byte, 0, len(args)+2)
	frame = append(frame, engineMessage, socketEvent)
	return append(frame, args...), nil
}

// Endpoint turns a broker base URL into its Engine.IO websocket address.
func Endpoint(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse broker url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported broker url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("broker url %q has no host", base)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
