package server

import (
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

type wsTransport struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newWSTransport(conn *websocket.Conn, maxFrameBytes int64) *wsTransport {
	conn.SetReadLimit(maxFrameBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	t := &wsTransport{
		conn: conn,
		done: make(chan struct{}),
	}
	go t.pingLoop()
	return t
}

// ReadFrame returns the next text or binary frame payload. Orderly peer
// closure is reported as io.EOF so the relay can tell it from a fault.
func (t *wsTransport) ReadFrame() ([]byte, error) {
	_, payload, err := t.conn.ReadMessage()
	if err != nil {
		if isOrderlyClose(err) {
			return nil, io.EOF
		}
		return nil, err
	}

	// Any inbound traffic proves liveness, not just pongs.
	_ = t.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	return payload, nil
}

func (t *wsTransport) WriteFrame(p []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, p)
}

// Close sends a close frame best-effort, stops the ping loop, and closes the
// underlying connection. Safe to call repeatedly.
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait))
		if err := t.conn.Close(); err != nil && !isOrderlyClose(err) {
			t.closeErr = err
		}
	})
	return t.closeErr
}

func (t *wsTransport) pingLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteWait)
			if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

// isOrderlyClose checks whether an error is expected during connection
// closure rather than a fault worth surfacing.
func isOrderlyClose(err error) bool {
	if err == nil {
		return true
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
		websocket.CloseAbnormalClosure) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
