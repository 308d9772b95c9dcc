package relay

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is a session's lifecycle position. Transitions are one-way:
// Connecting -> Active -> Closing -> Closed, with a direct
// Connecting -> Closed jump when the handshake fails.
type State int32

const (
	// StateConnecting covers the handshake; the session is not registered.
	StateConnecting State = iota
	// StateActive means the session is registered and receives dispatch.
	StateActive
	// StateClosing means teardown started; no further dispatch is accepted.
	StateClosing
	// StateClosed is terminal; all resources are released.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session represents one connected chat participant. The transport handle is
// exclusively owned by the session; the outbound queue is written by the
// relay engine and drained by the session's writer goroutine only.
type Session struct {
	id        string
	addr      string
	transport Transport
	queue     chan []byte
	limiter   *tokenBucket
	overflow  OverflowPolicy
	log       *zap.Logger

	state      atomic.Int32
	writerDone chan struct{}

	queueMu     sync.Mutex
	queueClosed bool

	nameMu      sync.RWMutex
	displayName string
}

func newSession(t Transport, addr, displayName string, opts Options, log *zap.Logger) *Session {
	id := uuid.NewString()
	if displayName == "" {
		displayName = guestName(id)
	}

	return &Session{
		id:          id,
		addr:        addr,
		transport:   t,
		queue:       make(chan []byte, opts.MaxQueueDepth),
		limiter:     newTokenBucket(opts.RateLimitBurst, opts.RateLimitRefillInterval),
		overflow:    opts.OverflowPolicy,
		log:         log,
		writerDone:  make(chan struct{}),
		displayName: displayName,
	}
}

func guestName(id string) string {
	if len(id) > 4 {
		id = id[:4]
	}
	return "guest-" + id
}

// ID returns the session's opaque unique identifier.
func (s *Session) ID() string { return s.id }

// Addr returns the remote address the session connected from.
func (s *Session) Addr() string { return s.addr }

// DisplayName returns the current human-chosen label. Uniqueness is not
// enforced; collisions are surfaced to users, not rejected.
func (s *Session) DisplayName() string {
	s.nameMu.RLock()
	defer s.nameMu.RUnlock()
	return s.displayName
}

func (s *Session) setDisplayName(name string) {
	s.nameMu.Lock()
	s.displayName = name
	s.nameMu.Unlock()
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) transitionState(from, to State) bool {
	return s.state.CompareAndSwap(int32(from), int32(to))
}

func (s *Session) forceState(to State) {
	s.state.Store(int32(to))
}

// enqueue appends an encoded frame to the outbound queue without blocking.
// On overflow it applies the session's policy: drop the oldest queued frame
// to make room, or report a CapacityError so the caller disconnects the slow
// client. A CapacityError under drop-oldest means the writer is stuck and the
// session is beyond saving.
func (s *Session) enqueue(frame []byte) error {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if s.queueClosed {
		return errSessionClosing
	}

	select {
	case s.queue <- frame:
		return nil
	default:
	}

	if s.overflow == OverflowDropOldest {
		select {
		case <-s.queue:
			s.log.Debug("dropped oldest queued frame",
				zap.String("session_id", s.id),
				zap.String("addr", s.addr))
		default:
		}
		select {
		case s.queue <- frame:
			return nil
		default:
		}
	}

	return &CapacityError{SessionID: s.id}
}

// closeQueue stops the outbound queue. The writer drains whatever is already
// queued, closes the transport, and signals writerDone. Safe to call more
// than once.
func (s *Session) closeQueue() {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()

	if s.queueClosed {
		return
	}
	s.queueClosed = true
	close(s.queue)
}

// abort closes the transport immediately, bypassing the queue drain. Used
// when a slow client must be disconnected; the read loop observes the closed
// transport and runs the normal teardown.
func (s *Session) abort() {
	s.closeQueue()
	if err := s.transport.Close(); err != nil {
		s.log.Debug("error closing aborted transport",
			zap.String("session_id", s.id),
			zap.Error(err))
	}
}

// writeLoop drains the outbound queue onto the transport. It owns the
// transport close on the write path: once the queue is closed and drained, or
// a write fails, the connection comes down with it.
func (s *Session) writeLoop() {
	defer func() {
		if err := s.transport.Close(); err != nil {
			s.log.Debug("error closing transport in write loop",
				zap.String("session_id", s.id),
				zap.Error(err))
		}
		close(s.writerDone)
	}()

	for frame := range s.queue {
		if err := s.transport.WriteFrame(frame); err != nil {
			s.log.Debug("outbound write failed",
				zap.String("session_id", s.id),
				zap.String("addr", s.addr),
				zap.Error(&TransportError{Op: "write", SessionID: s.id, Err: err}))
			return
		}
	}
}
