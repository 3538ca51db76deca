package serveractions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tachiguishi/iec61850-simulator/internal/dispatch"
	"github.com/Tachiguishi/iec61850-simulator/internal/registry"
)

func call(t *testing.T, reg *registry.BackendContext, action string, payload map[string]any) map[string]any {
	t.Helper()
	handler, ok := dispatch.Lookup(action)
	require.True(t, ok, "action %q not registered", action)
	reg.Lock()
	defer reg.Unlock()
	resp, err := handler(&dispatch.Context{Action: action, Registry: reg, Payload: payload, HasPayload: payload != nil})
	require.NoError(t, err)
	return resp
}

func minimalModel() map[string]any {
	return map[string]any{
		"name": "IED_A",
		"logical_devices": map[string]any{
			"PROT": map[string]any{
				"logical_nodes": map[string]any{
					"XCBR1": map[string]any{
						"data_objects": map[string]any{
							"Pos": map[string]any{
								"cdc": "DPC",
								"attributes": map[string]any{
									"stVal": map[string]any{"type": "BOOLEAN", "fc": "ST", "value": false},
								},
							},
						},
					},
				},
			},
		},
	}
}

func TestLoadModelStartStopRemove(t *testing.T) {
	reg := registry.NewBackendContext()

	loadResp := call(t, reg, "server.load_model", map[string]any{
		"instance_id": "a",
		"model":       minimalModel(),
	})
	assert.Equal(t, true, loadResp["success"])

	startResp := call(t, reg, "server.start", map[string]any{
		"instance_id": "a",
		"config":      map[string]any{"port": int64(10102)},
	})
	assert.Equal(t, true, startResp["success"])

	listResp := call(t, reg, "server.list_instances", map[string]any{})
	instances := listResp["instances"].([]any)
	require.Len(t, instances, 1)
	entry := instances[0].(map[string]any)
	assert.Equal(t, "a", entry["instance_id"])
	assert.Equal(t, "RUNNING", entry["state"])
	assert.Equal(t, int64(10102), entry["port"])
	assert.Equal(t, "IED_A", entry["ied_name"])

	stopResp := call(t, reg, "server.stop", map[string]any{"instance_id": "a"})
	assert.Equal(t, true, stopResp["success"])

	listResp = call(t, reg, "server.list_instances", map[string]any{})
	entry = listResp["instances"].([]any)[0].(map[string]any)
	assert.Equal(t, "STOPPED", entry["state"])

	removeResp := call(t, reg, "server.remove", map[string]any{"instance_id": "a"})
	assert.Equal(t, true, removeResp["success"])

	listResp = call(t, reg, "server.list_instances", map[string]any{})
	assert.Empty(t, listResp["instances"].([]any))
}

func TestStartWithoutModelFails(t *testing.T) {
	reg := registry.NewBackendContext()
	reg.Lock()
	handler, _ := dispatch.Lookup("server.start")
	_, err := handler(&dispatch.Context{
		Action: "server.start", Registry: reg,
		Payload: map[string]any{"instance_id": "a"}, HasPayload: true,
	})
	reg.Unlock()
	require.Error(t, err)
	assert.Equal(t, "Server not initialized. Call server.load_model first", err.Error())

	// server.start on a never-before-seen instance_id must not leave a
	// phantom instance behind for server.list_instances to report.
	listResp := call(t, reg, "server.list_instances", map[string]any{})
	assert.Empty(t, listResp["instances"].([]any))
}

func TestStopOnUnknownInstanceIsNoopAndLeavesNoPhantom(t *testing.T) {
	reg := registry.NewBackendContext()

	stopResp := call(t, reg, "server.stop", map[string]any{"instance_id": "never-seen"})
	assert.Equal(t, true, stopResp["success"])

	listResp := call(t, reg, "server.list_instances", map[string]any{})
	assert.Empty(t, listResp["instances"].([]any))
}

func TestSetDataValueThenGetValuesRoundTrip(t *testing.T) {
	reg := registry.NewBackendContext()
	call(t, reg, "server.load_model", map[string]any{"instance_id": "a", "model": minimalModel()})
	call(t, reg, "server.start", map[string]any{"instance_id": "a"})

	setResp := call(t, reg, "server.set_data_value", map[string]any{
		"instance_id": "a",
		"reference":   "PROT/XCBR1.Pos.stVal",
		"value":       true,
	})
	assert.Equal(t, true, setResp["success"])

	getResp := call(t, reg, "server.get_values", map[string]any{
		"instance_id": "a",
		"references":  []any{"PROT/XCBR1.Pos.stVal"},
	})
	values := getResp["values"].(map[string]any)
	rec := values["PROT/XCBR1.Pos.stVal"].(map[string]any)
	assert.Equal(t, true, rec["value"])
	assert.Equal(t, int64(0), rec["quality"])
	assert.Nil(t, rec["timestamp"])
}

func TestGetValuesEmptyReferencesReturnsEmptyMap(t *testing.T) {
	reg := registry.NewBackendContext()
	call(t, reg, "server.load_model", map[string]any{"instance_id": "a", "model": minimalModel()})
	call(t, reg, "server.start", map[string]any{"instance_id": "a"})

	resp := call(t, reg, "server.get_values", map[string]any{
		"instance_id": "a",
		"references":  []any{},
	})
	assert.Empty(t, resp["values"].(map[string]any))
}

func TestGetValuesUnresolvedReferenceYieldsNilTriple(t *testing.T) {
	reg := registry.NewBackendContext()
	call(t, reg, "server.load_model", map[string]any{"instance_id": "a", "model": minimalModel()})
	call(t, reg, "server.start", map[string]any{"instance_id": "a"})

	resp := call(t, reg, "server.get_values", map[string]any{
		"instance_id": "a",
		"references":  []any{"PROT/NOPE.x"},
	})
	rec := resp["values"].(map[string]any)["PROT/NOPE.x"].(map[string]any)
	assert.Nil(t, rec["value"])
}

func TestGetClientsUnknownInstanceReturnsEmptyArray(t *testing.T) {
	reg := registry.NewBackendContext()
	resp := call(t, reg, "server.get_clients", map[string]any{"instance_id": "does-not-exist"})
	assert.Empty(t, resp["clients"].([]any))
}

func TestRemoveUnknownInstanceIsIdempotentSuccess(t *testing.T) {
	reg := registry.NewBackendContext()
	resp := call(t, reg, "server.remove", map[string]any{"instance_id": "ghost"})
	assert.Equal(t, true, resp["success"])
}

func TestSetInterfaceEchoesAndStoresGlobalInterface(t *testing.T) {
	reg := registry.NewBackendContext()
	resp := call(t, reg, "server.set_interface", map[string]any{"interface_name": "eth0", "prefix_len": int64(16)})
	assert.Equal(t, "eth0", resp["interface_name"])
	assert.Equal(t, int64(16), resp["prefix_len"])

	name, prefixLen := reg.GlobalInterface()
	assert.Equal(t, "eth0", name)
	assert.Equal(t, 16, prefixLen)
}

func TestSetInterfaceMissingNameFails(t *testing.T) {
	reg := registry.NewBackendContext()
	reg.Lock()
	handler, _ := dispatch.Lookup("server.set_interface")
	_, err := handler(&dispatch.Context{Action: "server.set_interface", Registry: reg, Payload: map[string]any{}, HasPayload: true})
	reg.Unlock()
	require.Error(t, err)
	assert.Equal(t, "interface_name is required", err.Error())
}
