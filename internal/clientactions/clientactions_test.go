package clientactions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tachiguishi/iec61850-simulator/internal/dispatch"
	"github.com/Tachiguishi/iec61850-simulator/internal/iecstack"
	"github.com/Tachiguishi/iec61850-simulator/internal/registry"
)

func call(t *testing.T, reg *registry.BackendContext, action string, payload map[string]any) (map[string]any, error) {
	t.Helper()
	handler, ok := dispatch.Lookup(action)
	require.True(t, ok, "action %q not registered", action)
	reg.Lock()
	defer reg.Unlock()
	return handler(&dispatch.Context{Action: action, Registry: reg, Payload: payload, HasPayload: payload != nil})
}

func startTestServer(t *testing.T, port int) *iecstack.Server {
	t.Helper()
	model := iecstack.NewIedModel("IED_A")
	ld := model.AddLogicalDevice("PROT")
	ln := ld.AddLogicalNode("XCBR1")
	do := ln.AddDataObject("Pos")
	da := &iecstack.DataAttribute{Name: "stVal", Type: iecstack.TypeBoolean, FC: iecstack.ST}
	da.Set(iecstack.MmsValue{Type: iecstack.TypeBoolean, Value: false})
	do.AddChild(da)

	srv := iecstack.NewServerWithConfig(iecstack.NewServerConfig(), model)
	require.NoError(t, srv.Start(port))
	t.Cleanup(srv.Stop)
	return srv
}

func TestConnectReadWriteDisconnect(t *testing.T) {
	startTestServer(t, 20301)
	reg := registry.NewBackendContext()

	connResp, err := call(t, reg, "client.connect", map[string]any{
		"instance_id": "c1", "host": "0.0.0.0", "port": int64(20301),
	})
	require.NoError(t, err)
	assert.Equal(t, true, connResp["success"])

	readResp, err := call(t, reg, "client.read", map[string]any{
		"instance_id": "c1", "reference": "PROT/XCBR1.Pos.stVal",
	})
	require.NoError(t, err)
	rec := readResp["value"].(map[string]any)
	assert.Equal(t, false, rec["value"])
	assert.Nil(t, rec["error"])

	writeResp, err := call(t, reg, "client.write", map[string]any{
		"instance_id": "c1", "reference": "PROT/XCBR1.Pos.stVal", "value": true,
	})
	require.NoError(t, err)
	assert.Equal(t, true, writeResp["success"])

	readResp, err = call(t, reg, "client.read", map[string]any{
		"instance_id": "c1", "reference": "PROT/XCBR1.Pos.stVal",
	})
	require.NoError(t, err)
	assert.Equal(t, true, readResp["value"].(map[string]any)["value"])

	disconnResp, err := call(t, reg, "client.disconnect", map[string]any{"instance_id": "c1"})
	require.NoError(t, err)
	assert.Equal(t, true, disconnResp["success"])

	_, err = call(t, reg, "client.read", map[string]any{
		"instance_id": "c1", "reference": "PROT/XCBR1.Pos.stVal",
	})
	require.Error(t, err)
	assert.Equal(t, "Invalid request", err.Error())
}

func TestBrowseReturnsNestedModel(t *testing.T) {
	startTestServer(t, 20302)
	reg := registry.NewBackendContext()
	_, err := call(t, reg, "client.connect", map[string]any{
		"instance_id": "c1", "host": "0.0.0.0", "port": int64(20302),
	})
	require.NoError(t, err)

	resp, err := call(t, reg, "client.browse", map[string]any{"instance_id": "c1"})
	require.NoError(t, err)

	model := resp["model"].(map[string]any)
	lds := model["logical_devices"].(map[string]any)
	prot := lds["PROT"].(map[string]any)
	lns := prot["logical_nodes"].(map[string]any)
	xcbr1 := lns["XCBR1"].(map[string]any)
	dos := xcbr1["data_objects"].(map[string]any)
	pos := dos["Pos"].(map[string]any)
	attrs := pos["attributes"].(map[string]any)
	stVal := attrs["stVal"].(map[string]any)
	assert.Equal(t, "stVal", stVal["name"])
	assert.Equal(t, "", pos["cdc"])
}

func TestBrowseWhenNotConnectedReportsClientNotConnected(t *testing.T) {
	reg := registry.NewBackendContext()
	_, err := call(t, reg, "client.browse", map[string]any{"instance_id": "ghost"})
	require.Error(t, err)
	assert.Equal(t, "Client not connected", err.Error())
}

func TestReadBatchMixesFoundAndMissingReferences(t *testing.T) {
	startTestServer(t, 20303)
	reg := registry.NewBackendContext()
	_, err := call(t, reg, "client.connect", map[string]any{
		"instance_id": "c1", "host": "0.0.0.0", "port": int64(20303),
	})
	require.NoError(t, err)

	resp, err := call(t, reg, "client.read_batch", map[string]any{
		"instance_id": "c1",
		"references":  []any{"PROT/XCBR1.Pos.stVal", "PROT/XCBR1.Pos.nope"},
	})
	require.NoError(t, err)
	values := resp["values"].(map[string]any)

	found := values["PROT/XCBR1.Pos.stVal"].(map[string]any)
	assert.Equal(t, false, found["value"])
	assert.Nil(t, found["error"])

	missing := values["PROT/XCBR1.Pos.nope"].(map[string]any)
	assert.Nil(t, missing["value"])
	assert.NotNil(t, missing["error"])
}

func TestClientListInstancesReflectsConnectionState(t *testing.T) {
	startTestServer(t, 20304)
	reg := registry.NewBackendContext()
	_, err := call(t, reg, "client.connect", map[string]any{
		"instance_id": "c1", "host": "0.0.0.0", "port": int64(20304),
	})
	require.NoError(t, err)
	_, err = call(t, reg, "client.connect", map[string]any{
		"instance_id": "c2", "host": "203.0.113.1", "port": int64(1),
		"config": map[string]any{"timeout_ms": int64(20)},
	})
	require.Error(t, err)

	resp, err := call(t, reg, "client.list_instances", map[string]any{})
	require.NoError(t, err)
	instances := resp["instances"].([]any)
	require.Len(t, instances, 2)

	byID := map[string]map[string]any{}
	for _, raw := range instances {
		entry := raw.(map[string]any)
		byID[entry["instance_id"].(string)] = entry
	}
	assert.Equal(t, "CONNECTED", byID["c1"]["state"])
	assert.Equal(t, "0.0.0.0", byID["c1"]["target_host"])
	assert.Equal(t, int64(20304), byID["c1"]["target_port"])
	// c2's connect failed, but get-or-create still left a disconnected
	// instance behind (matching the original's get_or_create_client_instance
	// semantics) rather than silently vanishing, and the target it tried
	// (and failed) to reach is still recorded.
	assert.Equal(t, "DISCONNECTED", byID["c2"]["state"])
	assert.Equal(t, "203.0.113.1", byID["c2"]["target_host"])
	assert.Equal(t, int64(1), byID["c2"]["target_port"])
}

func TestConnectFailsWhenNoServerListening(t *testing.T) {
	reg := registry.NewBackendContext()
	reg.Lock()
	handler, _ := dispatch.Lookup("client.connect")
	start := time.Now()
	_, err := handler(&dispatch.Context{
		Action: "client.connect", Registry: reg, HasPayload: true,
		Payload: map[string]any{
			"instance_id": "c1", "host": "192.0.2.1", "port": int64(102),
			"config": map[string]any{"timeout_ms": int64(20)},
		},
	})
	reg.Unlock()
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
