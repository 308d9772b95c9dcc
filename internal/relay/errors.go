package relay

import (
	"errors"
	"fmt"
)

// ErrRelayClosed is returned when a connection arrives after shutdown began.
var ErrRelayClosed = errors.New("relay: shutting down")

// ErrUnknownSession is returned when a submission references a session id
// that is not (or no longer) registered.
var ErrUnknownSession = errors.New("relay: unknown session")

// errSessionClosing signals that a session's outbound queue is no longer
// accepting frames because teardown has started.
var errSessionClosing = errors.New("relay: session closing")

// HandshakeError reports a failed name negotiation. The connection is closed
// and no session is ever registered.
type HandshakeError struct {
	Reason string
	Err    error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("handshake: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("handshake: %s", e.Reason)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// ValidationError reports a rejected submission (empty body, oversize body,
// invalid rename). The sender may be notified; nothing is broadcast.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

// TransportError reports a read or write failure on one session's transport.
// The affected session is torn down; all others are unaffected.
type TransportError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s (session %s): %v", e.Op, e.SessionID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CapacityError reports an outbound queue overflow for a slow client.
// Depending on the configured policy the client is disconnected or the
// oldest queued frame has already been dropped.
type CapacityError struct {
	SessionID string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("outbound queue full for session %s", e.SessionID)
}
