package relay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWait = 2 * time.Second

// testOptions returns relay options suitable for tests: fast handshake
// timeouts and a rate limit high enough to never interfere.
func testOptions() Options {
	opts := DefaultOptions()
	opts.HandshakeTimeout = time.Second
	opts.WriteTimeout = testWait
	opts.RateLimitBurst = 1000
	opts.ServerName = "test-server"
	return opts
}

func newTestRelay(t *testing.T, opts Options) *Relay {
	t.Helper()
	r := New(opts, zap.NewNop())
	t.Cleanup(func() { _ = r.Shutdown(testWait) })
	return r
}

// testClient drives the client end of a net.Pipe attached to the relay
// through a LineTransport.
type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// connect dials the relay and completes the hello handshake. The returned
// client has not consumed any of its welcome traffic yet.
func connect(t *testing.T, r *Relay, name string) *testClient {
	t.Helper()

	serverConn, clientConn := net.Pipe()
	transport := NewLineTransport(serverConn, r.Options().MaxFrameBytes(), 0, testWait)

	accepted := make(chan error, 1)
	go func() {
		accepted <- r.Accept(transport, "pipe")
	}()

	c := &testClient{t: t, conn: clientConn, reader: bufio.NewReader(clientConn)}
	c.send(Frame{Type: KindHello, Name: name})
	require.NoError(t, <-accepted)

	t.Cleanup(func() { _ = clientConn.Close() })
	return c
}

func (c *testClient) send(f Frame) {
	c.t.Helper()
	raw, err := json.Marshal(f)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.SetWriteDeadline(time.Now().Add(testWait)))
	_, err = fmt.Fprintf(c.conn, "%s\n", raw)
	require.NoError(c.t, err)
}

func (c *testClient) sendChat(body string) {
	c.send(Frame{Type: KindChat, Body: body})
}

func (c *testClient) close() {
	_ = c.conn.Close()
}

// readFrame returns the next frame or an error on timeout or closure.
func (c *testClient) readFrame(timeout time.Duration) (Frame, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return Frame{}, err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return Frame{}, err
	}
	return decodeFrame([]byte(strings.TrimSuffix(line, "\n")))
}

// nextOfKind reads frames until one of the wanted kind arrives.
func (c *testClient) nextOfKind(kind Kind) Frame {
	c.t.Helper()
	deadline := time.Now().Add(testWait)
	for {
		remaining := time.Until(deadline)
		require.Positive(c.t, remaining, "timed out waiting for %q frame", kind)

		f, err := c.readFrame(remaining)
		require.NoError(c.t, err, "waiting for %q frame", kind)
		if f.Type == kind {
			return f
		}
	}
}

// drain consumes every frame already delivered plus anything arriving within
// the quiet window, and returns them.
func (c *testClient) drain(quiet time.Duration) []Frame {
	var frames []Frame
	for {
		f, err := c.readFrame(quiet)
		if err != nil {
			return frames
		}
		frames = append(frames, f)
	}
}

// expectSilence asserts that no frame arrives within the window.
func (c *testClient) expectSilence(window time.Duration) {
	c.t.Helper()
	f, err := c.readFrame(window)
	require.Error(c.t, err, "expected no frame, got %+v", f)
}
