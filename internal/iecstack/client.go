package iecstack

import (
	"fmt"
	"sync"
	"time"
)

// ClientSettings mirrors marrasen-iec61850's Settings{Host, Port,
// ConnectTimeout, RequestTimeout} shape (client_example_1.go), per
// spec.md §4.6.
type ClientSettings struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}

// Client is a simulated outbound IEC 61850 client session.
type Client struct {
	settings ClientSettings
	mu       sync.Mutex
	server   *Server
	peerAddr string
	closed   bool
}

// NewClient constructs an unconnected client for settings.
func NewClient(settings ClientSettings) *Client {
	return &Client{settings: settings}
}

// Connect dials settings.Host:settings.Port. It simulates the real
// stack's connection attempt: if no Server is listening at that address
// within ConnectTimeout, it returns a StackError carrying a message in
// the shape a real MMS connect failure would use, matching the pass-
// through error policy of spec.md §7.
func (c *Client) Connect() error {
	deadline := time.Now().Add(c.settings.ConnectTimeout)
	for {
		if srv, ok := lookupServer(c.settings.Host, c.settings.Port); ok && srv.IsRunning() {
			c.mu.Lock()
			c.server = srv
			c.peerAddr = fmt.Sprintf("sim-client:%d", time.Now().UnixNano())
			c.closed = false
			c.mu.Unlock()
			srv.notifyConnection(c.peerAddr, true)
			return nil
		}
		if time.Now().After(deadline) {
			return newStackError("IED_ERROR_CON_REJECTED: connection refused by %s:%d", c.settings.Host, c.settings.Port)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Close closes the session. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	srv, peer, closed := c.server, c.peerAddr, c.closed
	c.closed = true
	c.mu.Unlock()

	if closed || srv == nil {
		return
	}
	srv.notifyConnection(peer, false)
}

// Destroy releases the client. No-op in the simulated stack; present for
// teardown-order symmetry with the real stack contract.
func (c *Client) Destroy() {}

func (c *Client) boundServer() (*Server, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.server == nil {
		return nil, newStackError("IED_ERROR_NOT_CONNECTED: client not connected")
	}
	return c.server, nil
}

// ReadValue reads reference under fc. Per spec.md §4.6, callers try
// multiple FCs in order and take the first success; ReadValue itself
// only tries the exact fc given, failing if the attribute's declared FC
// does not match.
func (c *Client) ReadValue(reference string, fc FC) (MmsValue, error) {
	srv, err := c.boundServer()
	if err != nil {
		return MmsValue{}, err
	}
	node, err := ResolveNode(srv.Model(), reference)
	if err != nil {
		return MmsValue{}, newStackError("IED_ERROR_OBJECT_DOES_NOT_EXIST: %v", err)
	}
	da, ok := node.(*DataAttribute)
	if !ok {
		return MmsValue{}, newStackError("IED_ERROR_OBJECT_DOES_NOT_EXIST: %q is not a data attribute", reference)
	}
	if da.FC != fc {
		return MmsValue{}, newStackError("IED_ERROR_ACCESS_DENIED: %q has FC %s, not %s", reference, da.FC, fc)
	}
	v := da.Get()
	if v == nil {
		return MmsValue{}, newStackError("IED_ERROR_OBJECT_VALUE_INVALID: %q has no value", reference)
	}
	return *v, nil
}

// WriteValue writes value to reference under fc, with the same FC
// matching rule as ReadValue.
func (c *Client) WriteValue(reference string, fc FC, value MmsValue) error {
	srv, err := c.boundServer()
	if err != nil {
		return err
	}
	node, err := ResolveNode(srv.Model(), reference)
	if err != nil {
		return newStackError("IED_ERROR_OBJECT_DOES_NOT_EXIST: %v", err)
	}
	da, ok := node.(*DataAttribute)
	if !ok {
		return newStackError("IED_ERROR_OBJECT_DOES_NOT_EXIST: %q is not a data attribute", reference)
	}
	if da.FC != fc {
		return newStackError("IED_ERROR_ACCESS_DENIED: %q has FC %s, not %s", reference, da.FC, fc)
	}
	da.Set(value)
	return nil
}

// DirEntry is one entry in a directory enumeration result, per spec.md
// §4.6's browse operation.
type DirEntry struct {
	Name     string
	Children []DirEntry
}

// Browse enumerates the connected server's model as logical devices ->
// logical nodes -> data objects -> data attributes, per spec.md §4.6.
func (c *Client) Browse() ([]DirEntry, error) {
	srv, err := c.boundServer()
	if err != nil {
		return nil, err
	}
	model := srv.Model()
	var lds []DirEntry
	for _, ldName := range model.LogicalDeviceNames() {
		ld := model.LogicalDevices[ldName]
		var lns []DirEntry
		for _, lnName := range ld.LogicalNodeNames() {
			ln := ld.LogicalNodes[lnName]
			var dos []DirEntry
			for _, doName := range ln.DataObjectNames() {
				dos = append(dos, browseNode(ln.DataObjects[doName]))
			}
			lns = append(lns, DirEntry{Name: lnName, Children: dos})
		}
		lds = append(lds, DirEntry{Name: ldName, Children: lns})
	}
	return lds, nil
}

func browseNode(n Node) DirEntry {
	entry := DirEntry{Name: n.NodeName()}
	switch v := n.(type) {
	case *DataObject:
		for _, name := range v.ChildNames() {
			entry.Children = append(entry.Children, browseNode(v.Children[name]))
		}
	case *DataAttribute:
		for _, name := range v.ChildNames() {
			entry.Children = append(entry.Children, browseNode(v.Children[name]))
		}
	}
	return entry
}
