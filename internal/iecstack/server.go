package iecstack

import (
	"fmt"
	"sync"

	"github.com/Tachiguishi/iec61850-simulator/internal/logging"
)

// ServerConfig mirrors libiec61850's IedServerConfig surface at the
// granularity spec.md §4.5 needs: max connections and, implicitly, the
// local bind address applied separately via Server.SetLocalIPAddress.
type ServerConfig struct {
	MaxConnections int
}

// NewServerConfig returns a ServerConfig with libiec61850-like defaults.
func NewServerConfig() *ServerConfig {
	return &ServerConfig{MaxConnections: 10}
}

// Destroy releases cfg. No-op in the simulated stack; present for
// teardown-order symmetry with the real stack contract (spec.md §3).
func (c *ServerConfig) Destroy() {}

// ConnectionHandler is invoked whenever a client connects to or
// disconnects from a running server, per spec.md §4.5/§4.6's
// connection-indication callback.
type ConnectionHandler func(peerAddr string, connected bool)

// Server is a simulated IED server: an in-process listener keyed by
// address:port in a package-level registry so that a Client.Connect in
// the same process can find it, standing in for the real TCP/MMS server
// the external stack would run (spec.md §6.3).
type Server struct {
	mu           sync.Mutex
	model        *IedModel
	config       *ServerConfig
	localIP      string
	port         int
	running      bool
	onConnection ConnectionHandler
	peers        map[string]struct{}
}

// NewServerWithConfig creates a server bound to model and config. The
// server does not start listening until Start is called, matching
// spec.md §4.5's "Does not create the running server object here" /
// "does not start here" split between load_model and start.
func NewServerWithConfig(config *ServerConfig, model *IedModel) *Server {
	return &Server{model: model, config: config, peers: make(map[string]struct{})}
}

// SetConnectionIndicationHandler installs handler, invoked from whatever
// goroutine detects a connect/disconnect event — per spec.md §5, this
// stack never calls handler while any of Server's own methods are
// executing re-entrantly; registry code must not assume synchronous
// delivery with respect to its own mutex.
func (s *Server) SetConnectionIndicationHandler(handler ConnectionHandler) {
	s.mu.Lock()
	s.onConnection = handler
	s.mu.Unlock()
}

// SetLocalIPAddress records the address the server should be reachable
// at once started, per spec.md §4.5.
func (s *Server) SetLocalIPAddress(ip string) {
	s.mu.Lock()
	s.localIP = ip
	s.mu.Unlock()
}

var (
	registryMu sync.Mutex
	listeners  = map[string]*Server{}
)

func listenKey(ip string, port int) string {
	if ip == "" || ip == "0.0.0.0" {
		ip = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d", ip, port)
}

// Start begins listening on port using the server's configured local IP
// (or the wildcard address if none was set), per spec.md §4.5.
func (s *Server) Start(port int) error {
	s.mu.Lock()
	ip := s.localIP
	s.port = port
	s.running = true
	s.mu.Unlock()

	registryMu.Lock()
	listeners[listenKey(ip, port)] = s
	if ip != "" && ip != "0.0.0.0" {
		// Also reachable on the wildcard key so a client dialing
		// 0.0.0.0-bound instances by their advertised address still works
		// when no specific alias was bound.
		listeners[listenKey("0.0.0.0", port)] = s
	}
	registryMu.Unlock()
	return nil
}

// IsRunning reports the server's current listening state. Per spec.md
// §9, this reflects whatever Start last set it to; it is not re-verified
// against the registry on every call, matching the "known imprecision"
// the spec calls out for server.start's success flag.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stop stops listening. Idempotent.
func (s *Server) Stop() {
	s.mu.Lock()
	ip, port := s.localIP, s.port
	s.running = false
	s.mu.Unlock()

	registryMu.Lock()
	delete(listeners, listenKey(ip, port))
	delete(listeners, listenKey("0.0.0.0", port))
	registryMu.Unlock()
}

// Destroy releases the server. Callers must have already called Stop;
// Destroy itself does not stop a running server (spec.md §9 warns
// against a double Stop-on-destroy path — the registry layer is
// responsible for sequencing Stop before Destroy).
func (s *Server) Destroy() {}

// Model returns the server's backing model tree.
func (s *Server) Model() *IedModel {
	return s.model
}

// notifyConnection is called by a simulated Client.Connect/Close to
// drive the connection-indication callback, standing in for the real
// stack's internal MMS/GOOSE threads invoking it from outside any
// caller's lock (spec.md §5).
func (s *Server) notifyConnection(peerAddr string, connected bool) {
	s.mu.Lock()
	handler := s.onConnection
	if connected {
		s.peers[peerAddr] = struct{}{}
	} else {
		delete(s.peers, peerAddr)
	}
	s.mu.Unlock()

	if handler != nil {
		go logging.Recoverable(func() { handler(peerAddr, connected) })()
	}
}

// lookupServer finds a running server bound to host:port, simulating
// network reachability for Client.Connect.
func lookupServer(host string, port int) (*Server, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	s, ok := listeners[listenKey(host, port)]
	return s, ok
}
