// Package registry implements the backend's instance table: the single
// BackendContext that every action handler reads and mutates while
// holding its one mutex, per spec.md §3/§4.3.
package registry

import "sync"

const defaultGlobalPrefixLen = 24

// BackendContext is the process-wide state every dispatch call operates
// on. One mutex serializes all access; spec.md §4.3 is explicit that
// there is no finer-grained locking, so the methods here assume the
// caller already holds Lock (they do not lock internally) — mirroring
// _examples/vuuvv-vpacket/tcp/server.go's single coarse guard over its
// connection table, generalized here to two instance maps plus the
// network-alias fields.
type BackendContext struct {
	mu sync.Mutex

	servers map[string]*ServerInstance
	clients map[string]*ClientInstance

	globalInterfaceName string
	globalPrefixLen     int
}

// NewBackendContext returns an empty, ready-to-use context.
func NewBackendContext() *BackendContext {
	return &BackendContext{
		servers:         make(map[string]*ServerInstance),
		clients:         make(map[string]*ClientInstance),
		globalPrefixLen: defaultGlobalPrefixLen,
	}
}

// Lock acquires the context's single mutex. Every dispatch call must
// bracket its handler with Lock/Unlock, per spec.md §4.3.
func (ctx *BackendContext) Lock() { ctx.mu.Lock() }

// Unlock releases the context's single mutex.
func (ctx *BackendContext) Unlock() { ctx.mu.Unlock() }

// GlobalInterface returns the network interface name and prefix length
// used for IP-alias operations when an action omits them explicitly
// (spec.md §4.8).
func (ctx *BackendContext) GlobalInterface() (name string, prefixLen int) {
	return ctx.globalInterfaceName, ctx.globalPrefixLen
}

// SetGlobalInterface records the default interface/prefix length for
// subsequent IP-alias operations.
func (ctx *BackendContext) SetGlobalInterface(name string, prefixLen int) {
	ctx.globalInterfaceName = name
	if prefixLen > 0 {
		ctx.globalPrefixLen = prefixLen
	}
}

// GetServerInstance returns the instance registered under id, if any.
func (ctx *BackendContext) GetServerInstance(id string) (*ServerInstance, bool) {
	si, ok := ctx.servers[id]
	return si, ok
}

// GetOrCreateServerInstance returns the existing instance registered
// under id, creating an empty (unloaded) one if none exists yet. This
// matches spec.md §4.5's server.load_model, which is the only action
// allowed to bring a new instance_id into existence.
func (ctx *BackendContext) GetOrCreateServerInstance(id string) *ServerInstance {
	if si, ok := ctx.servers[id]; ok {
		return si
	}
	si := newServerInstance(id)
	ctx.servers[id] = si
	return si
}

// RemoveServerInstance destroys and forgets the instance registered
// under id. Removing an unknown id is a no-op, matching spec.md §4.5's
// tolerant server.remove.
func (ctx *BackendContext) RemoveServerInstance(id string) {
	si, ok := ctx.servers[id]
	if !ok {
		return
	}
	si.Destroy()
	delete(ctx.servers, id)
}

// ListServerInstances returns the instance_ids of every registered
// server instance, loaded or not, for server.list_instances.
func (ctx *BackendContext) ListServerInstances() []string {
	ids := make([]string, 0, len(ctx.servers))
	for id := range ctx.servers {
		ids = append(ids, id)
	}
	return ids
}

// GetClientInstance returns the instance registered under id, if any.
func (ctx *BackendContext) GetClientInstance(id string) (*ClientInstance, bool) {
	ci, ok := ctx.clients[id]
	return ci, ok
}

// GetOrCreateClientInstance returns the existing instance registered
// under id, creating an empty (disconnected) one if none exists yet.
// client.connect is the only action allowed to bring a new client
// instance_id into existence, mirroring GetOrCreateServerInstance.
func (ctx *BackendContext) GetOrCreateClientInstance(id string) *ClientInstance {
	if ci, ok := ctx.clients[id]; ok {
		return ci
	}
	ci := newClientInstance(id)
	ctx.clients[id] = ci
	return ci
}

// RemoveClientInstance disconnects and forgets the instance registered
// under id. Removing an unknown id is a no-op.
func (ctx *BackendContext) RemoveClientInstance(id string) {
	ci, ok := ctx.clients[id]
	if !ok {
		return
	}
	ci.Disconnect()
	delete(ctx.clients, id)
}

// ListClientInstances returns the instance_ids of every known client
// instance, for client.list_instances.
func (ctx *BackendContext) ListClientInstances() []string {
	ids := make([]string, 0, len(ctx.clients))
	for id := range ctx.clients {
		ids = append(ids, id)
	}
	return ids
}
