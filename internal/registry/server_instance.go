package registry

import (
	"time"

	"github.com/Tachiguishi/iec61850-simulator/internal/iecstack"
)

// serverState gates ServerInstance's resource teardown so that
// server.stop/server.remove cannot free a resource twice, per spec.md
// §9's double-free warning. Transitions:
//
//	unloaded -> loaded -> running <-> stopped
//	any state -> destroyed (Destroy)
//	destroyed -> loaded (AttachModel, when server.load_model rebuilds)
//
// server.stop from running goes to stopped; server.stop when already
// stopped or unloaded is a no-op success, not an error (spec.md §4.5).
type serverState int

const (
	stateUnloaded serverState = iota
	stateLoaded
	stateRunning
	stateStopped
	stateDestroyed
)

// ClientInfo describes one peer currently connected to a ServerInstance,
// as surfaced by server.get_clients.
type ClientInfo struct {
	ID          string
	ConnectedAt time.Time
}

// ServerInstance holds everything the backend tracks for one loaded IED
// simulator instance, per spec.md §3.
type ServerInstance struct {
	InstanceID   string
	IEDName      string
	IPAddress    string
	Port         int
	IPConfigured bool

	state  serverState
	model  *iecstack.IedModel
	config *iecstack.ServerConfig
	server *iecstack.Server

	feed    *clientFeed
	clients []ClientInfo
}

func newServerInstance(instanceID string) *ServerInstance {
	return &ServerInstance{
		InstanceID: instanceID,
		state:      stateUnloaded,
		feed:       newClientFeed(),
	}
}

// AttachModel records a freshly built model and config, transitioning
// unloaded -> loaded. Callers must hold the owning BackendContext's lock.
func (si *ServerInstance) AttachModel(iedName string, model *iecstack.IedModel, config *iecstack.ServerConfig) {
	si.IEDName = iedName
	si.model = model
	si.config = config
	si.state = stateLoaded
}

// Model returns the instance's model tree, or nil if none is loaded.
func (si *ServerInstance) Model() *iecstack.IedModel {
	return si.model
}

// Config returns the instance's stack config, or nil if none is loaded.
func (si *ServerInstance) Config() *iecstack.ServerConfig {
	return si.config
}

// IsLoaded reports whether a model has been attached.
func (si *ServerInstance) IsLoaded() bool {
	return si.state >= stateLoaded && si.state != stateDestroyed
}

// IsRunning reports whether the instance's server is currently started.
func (si *ServerInstance) IsRunning() bool {
	return si.state == stateRunning
}

// MarkStarted attaches the live iecstack.Server and transitions
// loaded -> running. It wires the server's connection-indication
// callback to this instance's feed so connect/disconnect events queue
// up without touching the registry's global mutex from the callback
// goroutine (see client_feed.go).
func (si *ServerInstance) MarkStarted(server *iecstack.Server, port int) {
	si.server = server
	si.Port = port
	si.state = stateRunning
	feed := si.feed
	server.SetConnectionIndicationHandler(func(peerAddr string, connected bool) {
		feed.push(peerAddr, connected)
	})
}

// MarkStopped transitions running -> stopped. It is a no-op if the
// instance was never running, matching spec.md §4.5's idempotent stop.
func (si *ServerInstance) MarkStopped() {
	if si.state == stateRunning {
		si.state = stateStopped
	}
}

// Server returns the live iecstack.Server, or nil if not started.
func (si *ServerInstance) Server() *iecstack.Server {
	return si.server
}

// Destroy releases the model and config exactly once. Calling it more
// than once is safe; the second call observes stateDestroyed and does
// nothing, which is the gate spec.md §9 asks for.
func (si *ServerInstance) Destroy() {
	if si.state == stateDestroyed {
		return
	}
	if si.server != nil {
		// The stack's own contract requires Stop before Destroy (see
		// iecstack.Server.Destroy); Stop is idempotent so this is safe
		// whether or not server.stop already ran.
		si.server.Stop()
		si.server.Destroy()
	}
	if si.config != nil {
		si.config.Destroy()
	}
	if si.model != nil {
		si.model.Destroy()
	}
	si.model = nil
	si.config = nil
	si.server = nil
	si.state = stateDestroyed
}

// SyncClients drains queued connection-indication events into the
// instance's client list and returns the up-to-date list. Callers must
// hold the owning BackendContext's lock; draining a per-instance feed
// under that lock never races the feed's own push (client_feed.go).
func (si *ServerInstance) SyncClients() []ClientInfo {
	for _, ev := range si.feed.drain() {
		if ev.connected {
			si.clients = append(si.clients, ClientInfo{ID: ev.peerAddr, ConnectedAt: ev.at})
			continue
		}
		for i, c := range si.clients {
			if c.ID == ev.peerAddr {
				si.clients = append(si.clients[:i], si.clients[i+1:]...)
				break
			}
		}
	}
	return si.clients
}
