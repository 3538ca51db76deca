package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Tachiguishi/iec61850-simulator/internal/registry"
)

func encodeRequest(t *testing.T, req map[string]any) []byte {
	t.Helper()
	body, err := msgpack.Marshal(req)
	require.NoError(t, err)
	return body
}

func decodeResponse(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, msgpack.Unmarshal(body, &out))
	return out
}

func TestDispatchUnknownAction(t *testing.T) {
	reg := registry.NewBackendContext()
	body := encodeRequest(t, map[string]any{"id": "r1", "type": "request", "action": "server.whatever", "payload": map[string]any{}})

	resp := decodeResponse(t, Dispatch(reg, body))

	assert.Equal(t, "r1", resp["id"])
	assert.Equal(t, "response", resp["type"])
	assert.Equal(t, map[string]any{}, resp["payload"])
	assert.Equal(t, map[string]any{"message": "Unknown action"}, resp["error"])
}

func TestDispatchDecodeError(t *testing.T) {
	reg := registry.NewBackendContext()

	resp := decodeResponse(t, Dispatch(reg, []byte{}))

	assert.Equal(t, "", resp["id"])
	assert.Equal(t, "response", resp["type"])
	errMap, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, errMap["message"], "Decode error")
}

func TestDispatchRoutesToRegisteredHandler(t *testing.T) {
	Register("test.echo", func(ctx *Context) (map[string]any, error) {
		payload, err := RequirePayload(ctx)
		if err != nil {
			return nil, err
		}
		id, err := RequireInstanceID(payload)
		if err != nil {
			return nil, err
		}
		return map[string]any{"echo": id}, nil
	})

	reg := registry.NewBackendContext()
	body := encodeRequest(t, map[string]any{"id": "r2", "action": "test.echo", "payload": map[string]any{"instance_id": "a"}})

	resp := decodeResponse(t, Dispatch(reg, body))

	assert.Equal(t, "r2", resp["id"])
	assert.Nil(t, resp["error"])
	assert.Equal(t, map[string]any{"echo": "a"}, resp["payload"])
}

func TestDispatchMissingInstanceID(t *testing.T) {
	reg := registry.NewBackendContext()
	body := encodeRequest(t, map[string]any{"id": "r3", "action": "test.echo", "payload": map[string]any{}})

	resp := decodeResponse(t, Dispatch(reg, body))

	assert.Equal(t, map[string]any{"message": "instance_id is required"}, resp["error"])
}

func TestDispatchMissingPayload(t *testing.T) {
	Register("test.needs_payload", func(ctx *Context) (map[string]any, error) {
		_, err := RequirePayload(ctx)
		return nil, err
	})

	reg := registry.NewBackendContext()
	body := encodeRequest(t, map[string]any{"id": "r4", "action": "test.needs_payload"})

	resp := decodeResponse(t, Dispatch(reg, body))

	assert.Equal(t, map[string]any{"message": "Missing payload"}, resp["error"])
}
