package registry

import "github.com/Tachiguishi/iec61850-simulator/internal/iecstack"

// ClientInstance holds everything the backend tracks for one outbound
// client session, per spec.md §3.
type ClientInstance struct {
	InstanceID string
	TargetHost string
	TargetPort int

	connected bool
	client    *iecstack.Client
}

func newClientInstance(instanceID string) *ClientInstance {
	return &ClientInstance{InstanceID: instanceID}
}

// SetTarget records the host/port a connect attempt is being made
// against, independent of whether that attempt succeeds — matching the
// original stack's ClientConnectAction, which sets target_host/
// target_port on the instance before dialing, not only on success.
func (ci *ClientInstance) SetTarget(host string, port int) {
	ci.TargetHost = host
	ci.TargetPort = port
}

// AttachClient records a freshly connected iecstack.Client.
func (ci *ClientInstance) AttachClient(host string, port int, client *iecstack.Client) {
	ci.TargetHost = host
	ci.TargetPort = port
	ci.client = client
	ci.connected = true
}

// Client returns the live client session, or nil if not connected.
func (ci *ClientInstance) Client() *iecstack.Client {
	return ci.client
}

// IsConnected reports whether client.connect has succeeded and
// client.disconnect has not yet been called.
func (ci *ClientInstance) IsConnected() bool {
	return ci.connected
}

// Disconnect releases the underlying session. Idempotent.
func (ci *ClientInstance) Disconnect() {
	if !ci.connected {
		return
	}
	ci.client.Close()
	ci.client.Destroy()
	ci.client = nil
	ci.connected = false
}
