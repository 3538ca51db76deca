// Package clientactions implements the client-side action handlers
// (C6): client.connect, client.disconnect, client.browse, client.read,
// client.read_batch, client.write, client.list_instances. Each handler
// registers itself with internal/dispatch from this package's init,
// mirroring internal/serveractions's registration pattern.
package clientactions

import (
	"time"

	"github.com/vuuvv/errors"
	"golang.org/x/sync/errgroup"

	"github.com/Tachiguishi/iec61850-simulator/internal/dispatch"
	"github.com/Tachiguishi/iec61850-simulator/internal/iecstack"
	"github.com/Tachiguishi/iec61850-simulator/internal/wire"
)

// readBatchConcurrency caps how many references client.read_batch reads
// in parallel, matching the teacher stack's own GetVariableValues limit.
const readBatchConcurrency = 8

// readFCOrder and writeFCOrder are the FC trial orders spec.md §4.6
// names for client.read/read_batch and client.write respectively.
var (
	readFCOrder  = []iecstack.FC{iecstack.ST, iecstack.MX, iecstack.SP, iecstack.CF}
	writeFCOrder = []iecstack.FC{iecstack.SP, iecstack.CF, iecstack.ST, iecstack.MX}
)

const defaultTimeout = 5 * time.Second

func init() {
	dispatch.Register("client.connect", connect)
	dispatch.Register("client.disconnect", disconnect)
	dispatch.Register("client.browse", browse)
	dispatch.Register("client.read", read)
	dispatch.Register("client.read_batch", readBatch)
	dispatch.Register("client.write", write)
	dispatch.Register("client.list_instances", listInstances)
}

func connect(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	id, err := dispatch.RequireInstanceID(payload)
	if err != nil {
		return nil, err
	}

	host, hasHost := wire.FindKey(payload, "host")
	port, hasPort := wire.FindKey(payload, "port")
	if !hasHost || !hasPort {
		return nil, errors.New("Invalid request")
	}

	settings := iecstack.ClientSettings{
		Host:           wire.AsString(host, ""),
		Port:           int(wire.AsInt64(port, 102)),
		ConnectTimeout: defaultTimeout,
		RequestTimeout: defaultTimeout,
	}
	if cfg, ok := wire.AsMap(payload["config"]); ok {
		if timeoutMs, ok := wire.FindKey(cfg, "timeout_ms"); ok {
			timeout := time.Duration(wire.AsInt64(timeoutMs, 5000)) * time.Millisecond
			settings.ConnectTimeout = timeout
			settings.RequestTimeout = timeout
		}
	}

	ci := ctx.Registry.GetOrCreateClientInstance(id)
	if ci.IsConnected() {
		ci.Disconnect()
	}
	// Recorded unconditionally, before the dial attempt, matching
	// ClientConnectAction: a failed connect still leaves target_host/
	// target_port populated for client.list_instances to report.
	ci.SetTarget(settings.Host, settings.Port)

	client := iecstack.NewClient(settings)
	if connErr := client.Connect(); connErr != nil {
		return nil, errors.New(connErr.Error())
	}

	ci.AttachClient(settings.Host, settings.Port, client)
	return map[string]any{"success": true, "instance_id": id}, nil
}

func disconnect(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	id, err := dispatch.RequireInstanceID(payload)
	if err != nil {
		return nil, err
	}

	ctx.Registry.RemoveClientInstance(id)
	return map[string]any{"success": true}, nil
}

// connectedClient resolves instance_id and returns its live client, or
// nil if the instance is unknown or not currently connected. It returns
// an error only for a missing/empty instance_id; an unconnected
// instance is reported via the nil client, letting each caller choose
// its own message (spec.md §4.6's handlers diverge here: browse reports
// "Client not connected" specifically, the others fold it into a
// generic "Invalid request").
func connectedClient(ctx *dispatch.Context, payload map[string]any) (*iecstack.Client, string, error) {
	id, err := dispatch.RequireInstanceID(payload)
	if err != nil {
		return nil, "", err
	}
	ci, ok := ctx.Registry.GetClientInstance(id)
	if !ok || !ci.IsConnected() {
		return nil, id, nil
	}
	return ci.Client(), id, nil
}

func browse(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	client, _, err := connectedClient(ctx, payload)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("Client not connected")
	}

	entries, err := client.Browse()
	if err != nil {
		return nil, errors.New(err.Error())
	}
	return map[string]any{"model": packModel(entries)}, nil
}

// packModel renders a client.Browse result as the §6.1-shaped nested
// model map spec.md §4.6 asks for, with cdc/description/class left as
// empty strings since the wire browse does not expose them.
func packModel(lds []iecstack.DirEntry) map[string]any {
	logicalDevices := map[string]any{}
	for _, ld := range lds {
		logicalNodes := map[string]any{}
		for _, ln := range ld.Children {
			dataObjects := map[string]any{}
			for _, do := range ln.Children {
				attributes := map[string]any{}
				for _, attr := range do.Children {
					attributes[attr.Name] = map[string]any{"name": attr.Name}
				}
				dataObjects[do.Name] = map[string]any{
					"cdc":         "",
					"description": "",
					"attributes":  attributes,
				}
			}
			logicalNodes[ln.Name] = map[string]any{
				"class":        "",
				"description":  "",
				"data_objects": dataObjects,
			}
		}
		logicalDevices[ld.Name] = map[string]any{
			"description":   "",
			"logical_nodes": logicalNodes,
		}
	}
	return map[string]any{"logical_devices": logicalDevices}
}

func read(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	client, _, cerr := connectedClient(ctx, payload)
	reference, hasReference := payload["reference"].(string)
	if cerr != nil || client == nil || !hasReference {
		return nil, errors.New("Invalid request")
	}

	return map[string]any{"value": readOne(client, reference)}, nil
}

// readOne tries reference under readFCOrder, returning the first
// success, per spec.md §4.6.
func readOne(client *iecstack.Client, reference string) map[string]any {
	var (
		value iecstack.MmsValue
		err   error
		ok    bool
	)
	for _, fc := range readFCOrder {
		value, err = client.ReadValue(reference, fc)
		if err == nil {
			ok = true
			break
		}
	}
	if !ok {
		return map[string]any{"value": nil, "quality": int64(0), "timestamp": nil, "error": err.Error()}
	}
	return map[string]any{"value": valueToWire(value), "quality": int64(0), "timestamp": nil, "error": nil}
}

// valueToWire coerces an MmsValue to the wire shape spec.md §4.6
// names: boolean -> boolean, integer -> int64, unsigned -> uint32,
// float -> double, string -> string, other -> nil.
func valueToWire(v iecstack.MmsValue) any {
	switch v.Type {
	case iecstack.TypeBoolean:
		b, _ := v.Value.(bool)
		return b
	case iecstack.TypeInt8, iecstack.TypeInt16, iecstack.TypeInt32, iecstack.TypeInt64, iecstack.TypeEnum:
		i, _ := v.Value.(int64)
		return i
	case iecstack.TypeUint8, iecstack.TypeUint16, iecstack.TypeUint24, iecstack.TypeUint32:
		i, _ := v.Value.(int64)
		return uint32(i)
	case iecstack.TypeFloat32, iecstack.TypeFloat64:
		f, _ := v.Value.(float64)
		return f
	case iecstack.TypeVisString32, iecstack.TypeVisString64, iecstack.TypeVisString129,
		iecstack.TypeVisString255, iecstack.TypeUnicodeString255:
		s, _ := v.Value.(string)
		return s
	default:
		return nil
	}
}

func readBatch(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	client, _, cerr := connectedClient(ctx, payload)
	references, hasReferences := wire.AsStringSlice(payload["references"])
	if cerr != nil || client == nil || !hasReferences {
		return nil, errors.New("Invalid request")
	}

	// Reads fan out across references, one goroutine each capped at
	// readBatchConcurrency, mirroring marrasen-iec61850/client_ld.go's
	// GetVariableValues use of errgroup.Group.SetLimit for its own
	// per-variable read fan-out. Each goroutine only writes its own
	// results slot, so the map assembly below never races.
	results := make([]map[string]any, len(references))
	var eg errgroup.Group
	eg.SetLimit(readBatchConcurrency)
	for i, ref := range references {
		i, ref := i, ref
		eg.Go(func() error {
			results[i] = readOne(client, ref)
			return nil
		})
	}
	_ = eg.Wait()

	values := map[string]any{}
	for i, ref := range references {
		values[ref] = results[i]
	}
	return map[string]any{"values": values}, nil
}

func write(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	client, _, cerr := connectedClient(ctx, payload)
	reference, hasReference := payload["reference"].(string)
	value, hasValue := wire.FindKey(payload, "value")
	if cerr != nil || client == nil || !hasReference || !hasValue {
		return nil, errors.New("Invalid request")
	}

	mv := writeValueFor(value)
	var writeErr error
	for _, fc := range writeFCOrder {
		writeErr = client.WriteValue(reference, fc, mv)
		if writeErr == nil {
			return map[string]any{"success": true}, nil
		}
	}
	return nil, errors.New(writeErr.Error())
}

// writeValueFor selects the stack write operation by the decoded wire
// value's own Go type, per spec.md §4.6: boolean -> boolean write,
// float -> float write, string -> visible-string write, otherwise ->
// int32 write via as_int64.
func writeValueFor(raw any) iecstack.MmsValue {
	switch v := raw.(type) {
	case bool:
		return iecstack.MmsValue{Type: iecstack.TypeBoolean, Value: v}
	case float32:
		return iecstack.MmsValue{Type: iecstack.TypeFloat32, Value: float64(v)}
	case float64:
		return iecstack.MmsValue{Type: iecstack.TypeFloat32, Value: v}
	case string:
		return iecstack.MmsValue{Type: iecstack.TypeVisString255, Value: v}
	default:
		return iecstack.MmsValue{Type: iecstack.TypeInt32, Value: wire.AsInt64(raw, 0)}
	}
}

func listInstances(ctx *dispatch.Context) (map[string]any, error) {
	if _, err := dispatch.RequirePayload(ctx); err != nil {
		return nil, err
	}

	ids := ctx.Registry.ListClientInstances()
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		ci, ok := ctx.Registry.GetClientInstance(id)
		if !ok {
			continue
		}
		state := "DISCONNECTED"
		if ci.IsConnected() {
			state = "CONNECTED"
		}
		out = append(out, map[string]any{
			"instance_id": id,
			"state":       state,
			"target_host": ci.TargetHost,
			"target_port": int64(ci.TargetPort),
		})
	}
	return map[string]any{"instances": out}, nil
}
