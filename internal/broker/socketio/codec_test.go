package socketio

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		frame string
		kind  packetKind
		event string
		data  string
	}{
		{name: "open", frame: `0{"sid":"a"}`, kind: kindOpen, data: `{"sid":"a"}`},
		{name: "close", frame: `1`, kind: kindClose},
		{name: "ping", frame: `2`, kind: kindPing},
		{name: "pong", frame: `3`, kind: kindNoop},
		{name: "noop", frame: `6`, kind: kindNoop},
		{name: "connect", frame: `40{"sid":"b"}`, kind: kindConnect, data: `{"sid":"b"}`},
		{name: "connect error", frame: `44{"message":"no"}`, kind: kindConnectError, data: `{"message":"no"}`},
		{name: "disconnect", frame: `41`, kind: kindDisconnect},
		{name: "event", frame: `42["newTask",{"a":1}]`, kind: kindEvent, event: "newTask", data: `{"a":1}`},
		{name: "event without args", frame: `42["ping"]`, kind: kindEvent, event: "ping", data: `null`},
		{name: "event with ack id", frame: `4212["x",[1]]`, kind: kindEvent, event: "x", data: `[1]`},
		{name: "namespaced event", frame: `42/admin,["x",2]`, kind: kindEvent, event: "x", data: `2`},
		{name: "binary event", frame: `45`, kind: kindOther},
		{name: "upgrade", frame: `5`, kind: kindOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := decode([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.kind, p.kind)
			assert.Equal(t, tt.event, p.event)
			if tt.data != "" {
				assert.JSONEq(t, tt.data, string(p.data))
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	for _, frame := range []string{``, `4`, `42`, `42{}`, `42[]`, `42[1]`} {
		_, err := decode([]byte(frame))
		require.ErrorIs(t, err, errMalformed, frame)
	}
}

func TestEncodeEvent(t *testing.T) {
	t.Parallel()

	frame, err := encodeEvent("taskResult", map[string]any{"taskId": "t1", "result": nil})
	require.NoError(t, err)
	require.Equal(t, "42", string(frame[:2]))

	var args []json.RawMessage
	require.NoError(t, json.Unmarshal(frame[2:], &args))
	assert.JSONEq(t, `"taskResult"`, string(args[0]))
	assert.JSONEq(t, `{"taskId":"t1","result":null}`, string(args[1]))
}

func TestEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "https://broker.example", want: "wss://broker.example/socket.io/?EIO=4&transport=websocket"},
		{in: "http://localhost:3000/", want: "ws://localhost:3000/socket.io/?EIO=4&transport=websocket"},
		{in: "wss://broker.example/custom/", want: "wss://broker.example/custom/?EIO=4&transport=websocket"},
	}
	for _, tt := range tests {
		got, err := Endpoint(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := Endpoint("ftp://broker.example")
	require.Error(t, err)
	_, err = Endpoint("https://")
	require.Error(t, err)
}
