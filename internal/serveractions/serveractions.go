// Package serveractions implements the server-side action handlers
// (C5): server.load_model, server.start, server.stop, server.remove,
// server.set_data_value, server.get_values, server.get_clients,
// server.list_instances, server.get_interfaces, server.set_interface.
// Each handler registers itself with internal/dispatch from this
// package's init, per spec.md §9's "static mapping of action name to
// function value" recommendation.
package serveractions

import (
	"strings"

	"github.com/vuuvv/errors"

	"github.com/Tachiguishi/iec61850-simulator/internal/dispatch"
	"github.com/Tachiguishi/iec61850-simulator/internal/iecstack"
	"github.com/Tachiguishi/iec61850-simulator/internal/model"
	"github.com/Tachiguishi/iec61850-simulator/internal/netalias"
	"github.com/Tachiguishi/iec61850-simulator/internal/registry"
	"github.com/Tachiguishi/iec61850-simulator/internal/wire"
)

// errServerNotInitialized is server.start's literal precondition
// message, per spec.md §4.5/§7.
var errServerNotInitialized = errors.New("Server not initialized. Call server.load_model first")

func init() {
	dispatch.Register("server.load_model", loadModel)
	dispatch.Register("server.start", start)
	dispatch.Register("server.stop", stop)
	dispatch.Register("server.remove", remove)
	dispatch.Register("server.set_data_value", setDataValue)
	dispatch.Register("server.get_values", getValues)
	dispatch.Register("server.get_clients", getClients)
	dispatch.Register("server.list_instances", listInstances)
	dispatch.Register("server.get_interfaces", getInterfaces)
	dispatch.Register("server.set_interface", setInterface)
}

// withInstance runs the "require payload, require instance_id,
// get-or-create the instance" preamble. Only server.load_model uses
// this: it is the sole handler spec.md line 68 says may implicitly
// create a ServerInstance. Every other handler looks its instance up
// with the non-creating ctx.Registry.GetServerInstance instead.
func withInstance(ctx *dispatch.Context, fn func(id string, si *registry.ServerInstance) (map[string]any, error)) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	id, err := dispatch.RequireInstanceID(payload)
	if err != nil {
		return nil, err
	}
	si := ctx.Registry.GetOrCreateServerInstance(id)
	return fn(id, si)
}

func loadModel(ctx *dispatch.Context) (map[string]any, error) {
	return withInstance(ctx, func(id string, si *registry.ServerInstance) (map[string]any, error) {
		modelPayload, ok := wire.AsMap(ctx.Payload["model"])
		if !ok {
			return nil, errors.New("model payload is required")
		}

		// Rebuilding over an existing instance releases server/config/model
		// in order before reconstruction; the IP alias is untouched here,
		// per spec.md §4.5's "Rebuilding a model... IP alias is not touched
		// by load_model".
		si.Destroy()

		built, err := model.Build(modelPayload)
		if err != nil {
			return nil, err
		}

		maxConnections, port, ipAddress := int64(10), int64(102), "0.0.0.0"
		if cfgPayload, ok := wire.AsMap(ctx.Payload["config"]); ok {
			maxConnections = wire.AsInt64(cfgPayload["max_connections"], maxConnections)
			port = wire.AsInt64(cfgPayload["port"], port)
			ipAddress = wire.AsString(cfgPayload["ip_address"], ipAddress)
		}

		cfg := iecstack.NewServerConfig()
		cfg.MaxConnections = int(maxConnections)
		si.Port = int(port)
		si.IPAddress = ipAddress

		si.AttachModel(built.Name, built, cfg)
		return map[string]any{"success": true, "instance_id": id}, nil
	})
}

func start(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	id, err := dispatch.RequireInstanceID(payload)
	if err != nil {
		return nil, err
	}

	// Like the original's ServerStartAction::handle, this looks the
	// instance up rather than creating it: an instance only comes into
	// being via server.load_model (withInstance's get-or-create is for
	// that handler alone), so an unknown instance_id here is a hard
	// error, not a phantom unloaded instance.
	si, ok := ctx.Registry.GetServerInstance(id)
	if !ok || !si.IsLoaded() || si.Model() == nil {
		return nil, errServerNotInitialized
	}

	if si.IsRunning() {
		si.Server().Stop()
		si.MarkStopped()
	}

	if cfgPayload, ok := wire.AsMap(payload["config"]); ok {
		if port := wire.AsInt64(cfgPayload["port"], 0); port != 0 {
			si.Port = int(port)
		}
		if ip, ok := wire.FindKey(cfgPayload, "ip_address"); ok {
			si.IPAddress = wire.AsString(ip, si.IPAddress)
		}
	}

	server := si.Server()
	if server == nil {
		cfg := si.Config()
		if cfg == nil {
			cfg = iecstack.NewServerConfig()
		}
		server = iecstack.NewServerWithConfig(cfg, si.Model())
	}
	if si.IPAddress != "" && si.IPAddress != "0.0.0.0" {
		server.SetLocalIPAddress(si.IPAddress)
	}

	applyIPAlias(ctx.Registry, si, id)

	server.Start(si.Port)
	si.MarkStarted(server, si.Port)

	return map[string]any{"success": server.IsRunning(), "instance_id": id}, nil
}

// applyIPAlias adds an IP alias for si.IPAddress on the backend's global
// interface, if one is configured and the address is neither the
// wildcard nor loopback, per spec.md §4.5. Alias-add failure is logged
// but never fails server.start.
func applyIPAlias(reg *registry.BackendContext, si *registry.ServerInstance, id string) {
	if si.IPAddress == "" || si.IPAddress == "0.0.0.0" || strings.HasPrefix(si.IPAddress, "127.") {
		return
	}
	iface, prefixLen := reg.GlobalInterface()
	if iface == "" {
		return
	}
	label := netalias.Label(iface, id)
	if netalias.AddIPAddress(iface, si.IPAddress, prefixLen, label) {
		si.IPConfigured = true
	}
}

func stop(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	id, err := dispatch.RequireInstanceID(payload)
	if err != nil {
		return nil, err
	}

	// Mirrors ServerStopAction::handle: an unknown instance_id is a
	// no-op success, never a reason to materialize a phantom instance.
	si, ok := ctx.Registry.GetServerInstance(id)
	if !ok {
		return map[string]any{"success": true}, nil
	}

	if si.IsRunning() {
		si.Server().Stop()
		si.MarkStopped()
	}
	return map[string]any{"success": true}, nil
}

func remove(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	id, err := dispatch.RequireInstanceID(payload)
	if err != nil {
		return nil, err
	}

	si, ok := ctx.Registry.GetServerInstance(id)
	if !ok {
		return map[string]any{"success": true}, nil
	}

	if si.IPConfigured {
		if iface, _ := ctx.Registry.GlobalInterface(); iface != "" {
			netalias.RemoveIPAddress(iface, si.IPAddress, prefixLenOf(ctx.Registry))
			si.IPConfigured = false
		}
	}
	if si.IsRunning() {
		si.Server().Stop()
		si.MarkStopped()
	}
	ctx.Registry.RemoveServerInstance(id)
	return map[string]any{"success": true}, nil
}

func prefixLenOf(reg *registry.BackendContext) int {
	_, prefixLen := reg.GlobalInterface()
	return prefixLen
}

func setDataValue(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	id, err := dispatch.RequireInstanceID(payload)
	if err != nil {
		return nil, err
	}

	reference, hasReference := payload["reference"].(string)
	value, hasValue := wire.FindKey(payload, "value")

	si, ok := ctx.Registry.GetServerInstance(id)
	if !ok || si.Server() == nil || si.Model() == nil || !hasReference || reference == "" || !hasValue {
		return nil, errors.New("Invalid request: missing server, model, reference, or value")
	}

	node, err := iecstack.ResolveNode(si.Model(), reference)
	if err == nil {
		if da, ok := node.(*iecstack.DataAttribute); ok {
			if mv, ok := model.CoerceValue(da.Type, value); ok {
				da.Set(mv)
			}
		}
		// Missing node or wrong node kind is silently ignored, per
		// spec.md §4.5.
	}

	return map[string]any{"success": true}, nil
}

func getValues(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	id, err := dispatch.RequireInstanceID(payload)
	if err != nil {
		return nil, err
	}

	references, hasReferences := wire.AsStringSlice(payload["references"])
	si, siOK := ctx.Registry.GetServerInstance(id)
	if !siOK || si.Server() == nil || si.Model() == nil || !hasReferences {
		return nil, errors.New("Invalid request: missing server, model, or references array")
	}

	values := map[string]any{}
	for _, ref := range references {
		if node, err := iecstack.ResolveNode(si.Model(), ref); err == nil {
			if da, ok := node.(*iecstack.DataAttribute); ok {
				if v := da.Get(); v != nil {
					values[ref] = map[string]any{"value": v.Value, "quality": int64(0), "timestamp": nil}
					continue
				}
			}
		}
		values[ref] = map[string]any{"value": nil, "quality": int64(0), "timestamp": nil}
	}

	return map[string]any{"values": values}, nil
}

func getClients(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}
	id, err := dispatch.RequireInstanceID(payload)
	if err != nil {
		return nil, err
	}

	si, ok := ctx.Registry.GetServerInstance(id)
	if !ok {
		return map[string]any{"clients": []any{}}, nil
	}

	clients := si.SyncClients()
	out := make([]any, 0, len(clients))
	for _, c := range clients {
		out = append(out, map[string]any{"id": c.ID, "connected_at": c.ConnectedAt})
	}
	return map[string]any{"clients": out}, nil
}

func listInstances(ctx *dispatch.Context) (map[string]any, error) {
	if _, err := dispatch.RequirePayload(ctx); err != nil {
		return nil, err
	}

	ids := ctx.Registry.ListServerInstances()
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		si, ok := ctx.Registry.GetServerInstance(id)
		if !ok {
			continue
		}
		state := "STOPPED"
		if si.IsRunning() {
			state = "RUNNING"
		}
		out = append(out, map[string]any{
			"instance_id": id,
			"state":       state,
			"port":        int64(si.Port),
			"ied_name":    si.IEDName,
		})
	}
	return map[string]any{"instances": out}, nil
}

func getInterfaces(ctx *dispatch.Context) (map[string]any, error) {
	if _, err := dispatch.RequirePayload(ctx); err != nil {
		return nil, err
	}

	infos, err := netalias.GetNetworkInterfaces()
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(infos))
	for _, info := range infos {
		addrs := make([]any, 0, len(info.Addresses))
		for _, a := range info.Addresses {
			addrs = append(addrs, a)
		}
		out = append(out, map[string]any{
			"name":        info.Name,
			"description": info.Description,
			"is_up":       info.IsUp,
			"addresses":   addrs,
		})
	}

	var current any
	if name, prefixLen := ctx.Registry.GlobalInterface(); name != "" {
		current = map[string]any{"name": name, "prefix_len": int64(prefixLen)}
	}

	return map[string]any{"interfaces": out, "current_interface": current}, nil
}

func setInterface(ctx *dispatch.Context) (map[string]any, error) {
	payload, err := dispatch.RequirePayload(ctx)
	if err != nil {
		return nil, err
	}

	name, _ := payload["interface_name"].(string)
	if name == "" {
		return nil, errors.New("interface_name is required")
	}
	prefixLen := int(wire.AsInt64(payload["prefix_len"], 24))

	ctx.Registry.SetGlobalInterface(name, prefixLen)
	return map[string]any{"interface_name": name, "prefix_len": int64(prefixLen)}, nil
}
