package transport

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tachiguishi/iec61850-simulator/internal/wire"
)

func echoHandler(body []byte) []byte {
	return body
}

func socketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "iec61850_simulator.sock")
}

func TestServerEchoesFramedRequests(t *testing.T) {
	path := socketPath(t)
	srv := NewServer(Config{SocketPath: path}, echoHandler)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wire.WriteFrame(conn, []byte("hello")))
	got, err := wire.ReadFrame(conn, wire.DefaultMaxFrameBytes)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))
}

func TestServerPreservesPerConnectionOrder(t *testing.T) {
	path := socketPath(t)
	srv := NewServer(Config{SocketPath: path, Workers: 8}, func(body []byte) []byte {
		// Reverse handler duration so a naive implementation would
		// reorder responses if it didn't serialize per-connection writes.
		if string(body) == "slow" {
			time.Sleep(30 * time.Millisecond)
		}
		return body
	})
	require.NoError(t, srv.Start())
	defer srv.Stop()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, wire.WriteFrame(conn, []byte("slow")))
	require.NoError(t, wire.WriteFrame(conn, []byte("fast")))

	first, err := wire.ReadFrame(conn, wire.DefaultMaxFrameBytes)
	require.NoError(t, err)
	second, err := wire.ReadFrame(conn, wire.DefaultMaxFrameBytes)
	require.NoError(t, err)

	assert.Equal(t, "slow", string(first))
	assert.Equal(t, "fast", string(second))
}

func TestServerSupportsMultipleSequentialRequestsPerConnection(t *testing.T) {
	path := socketPath(t)
	srv := NewServer(Config{SocketPath: path}, echoHandler)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, wire.WriteFrame(conn, []byte("ping")))
		got, err := wire.ReadFrame(conn, wire.DefaultMaxFrameBytes)
		require.NoError(t, err)
		assert.Equal(t, "ping", string(got))
	}
}

func TestStopUnlinksSocketAndIsIdempotent(t *testing.T) {
	path := socketPath(t)
	srv := NewServer(Config{SocketPath: path}, echoHandler)
	require.NoError(t, srv.Start())

	srv.Stop()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.NotPanics(t, func() { srv.Stop() })
}

func TestStartUnlinksStalePreexistingSocket(t *testing.T) {
	path := socketPath(t)
	// Simulate a stale socket file left behind by a prior, uncleanly
	// terminated run (spec.md §4.2: "on startup the daemon unlinks any
	// pre-existing file at that path").
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o600))

	srv := NewServer(Config{SocketPath: path}, echoHandler)
	require.NoError(t, srv.Start())
	defer srv.Stop()
}
