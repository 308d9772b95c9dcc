package relay

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"time"
)

// Transport is one client's framed byte-stream connection. Implementations
// own their read/write deadlines and liveness detection: ReadFrame must
// eventually fail once the peer is gone, and WriteFrame must not block
// forever on a dead peer. A Transport is used by exactly one session;
// ReadFrame is called from the session's read loop and WriteFrame from its
// writer goroutine.
type Transport interface {
	// ReadFrame blocks for the next inbound frame. It returns io.EOF when
	// the peer closed the connection in an orderly way.
	ReadFrame() ([]byte, error)

	// WriteFrame sends one frame.
	WriteFrame(p []byte) error

	// Close releases the connection. It must be safe to call repeatedly and
	// must unblock any in-flight ReadFrame.
	Close() error
}

// LineTransport frames newline-delimited messages over a net.Conn. Each frame
// is one line; trailing carriage returns are stripped on read. An idle
// timeout refreshed on every read detects dead peers.
type LineTransport struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	idleTimeout  time.Duration
	writeTimeout time.Duration
}

// NewLineTransport wraps conn with newline framing. Frames above maxFrame
// bytes terminate the connection with bufio.ErrTooLong. Non-positive
// timeouts disable the corresponding deadline.
func NewLineTransport(conn net.Conn, maxFrame int64, idleTimeout, writeTimeout time.Duration) *LineTransport {
	initial := 4096
	if int64(initial) > maxFrame {
		initial = int(maxFrame)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, initial), int(maxFrame))
	return &LineTransport{
		conn:         conn,
		scanner:      scanner,
		idleTimeout:  idleTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadFrame returns the next line without its delimiter.
func (t *LineTransport) ReadFrame() ([]byte, error) {
	if t.idleTimeout > 0 {
		if err := t.conn.SetReadDeadline(time.Now().Add(t.idleTimeout)); err != nil {
			return nil, err
		}
	}

	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil, io.EOF
			}
			return nil, err
		}
		return nil, io.EOF
	}

	line := bytes.TrimSuffix(t.scanner.Bytes(), []byte{'\r'})

	// The scanner reuses its buffer between calls.
	frame := make([]byte, len(line))
	copy(frame, line)
	return frame, nil
}

// WriteFrame sends one line.
func (t *LineTransport) WriteFrame(p []byte) error {
	if t.writeTimeout > 0 {
		if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
			return err
		}
	}

	buf := make([]byte, 0, len(p)+1)
	buf = append(buf, p...)
	buf = append(buf, '\n')
	_, err := t.conn.Write(buf)
	return err
}

// Close closes the underlying connection.
func (t *LineTransport) Close() error {
	err := t.conn.Close()
	if err != nil && errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
