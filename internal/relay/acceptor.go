package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Acceptor turns handshaken transports into registered sessions and owns
// their read loops. Handshake failures close the connection without any
// registry visibility; no partial session ever reaches the registry.
type Acceptor struct {
	opts     Options
	registry *Registry
	engine   *Engine
	status   *StatusReporter
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newAcceptor(opts Options, registry *Registry, engine *Engine, status *StatusReporter, log *zap.Logger) *Acceptor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Acceptor{
		opts:     opts,
		registry: registry,
		engine:   engine,
		status:   status,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Accept performs the display-name handshake on t, registers the resulting
// session, starts its read and write loops, and announces the join. On
// handshake failure the transport is closed and a HandshakeError returned.
func (a *Acceptor) Accept(t Transport, remoteAddr string) error {
	if a.ctx.Err() != nil {
		_ = t.Close()
		return ErrRelayClosed
	}

	name, err := a.handshake(t)
	if err != nil {
		_ = t.Close()
		a.log.Info("handshake failed",
			zap.String("addr", remoteAddr),
			zap.Error(err))
		return err
	}

	s := newSession(t, remoteAddr, name, a.opts, a.log)
	if !a.registry.Add(s) {
		_ = t.Close()
		return ErrRelayClosed
	}

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		s.writeLoop()
	}()
	go func() {
		defer a.wg.Done()
		a.readLoop(s)
	}()

	a.engine.notice(s, fmt.Sprintf(
		"Welcome to the chat, %s! Type /clear to clear your screen.", s.DisplayName()))
	a.engine.replayHistory(s)
	a.engine.systemBroadcast(fmt.Sprintf("%s has joined the chat", s.DisplayName()), s.ID())
	a.engine.pushUserList()
	a.status.publish(Event{
		Kind:        EventJoined,
		SessionID:   s.ID(),
		DisplayName: s.DisplayName(),
		Time:        time.Now(),
	})

	a.log.Info("session joined",
		zap.String("session_id", s.ID()),
		zap.String("name", s.DisplayName()),
		zap.String("addr", remoteAddr),
		zap.Int("connected", a.registry.Len()))
	return nil
}

// handshake reads the hello frame within HandshakeTimeout and returns the
// announced display name, truncated to the configured bound. An empty name is
// allowed; the session gets a guest name. A malformed first frame or a
// timeout is a hard failure.
func (a *Acceptor) handshake(t Transport) (string, error) {
	var timedOut atomic.Bool
	timer := time.AfterFunc(a.opts.HandshakeTimeout, func() {
		timedOut.Store(true)
		_ = t.Close()
	})
	raw, err := t.ReadFrame()
	timer.Stop()

	if err != nil {
		if timedOut.Load() {
			return "", &HandshakeError{Reason: "timed out waiting for display name"}
		}
		return "", &HandshakeError{Reason: "reading hello frame", Err: err}
	}

	f, err := decodeFrame(raw)
	if err != nil {
		return "", &HandshakeError{Reason: "malformed hello frame", Err: err}
	}
	if f.Type != KindHello {
		return "", &HandshakeError{Reason: "first frame must announce a display name"}
	}

	name := strings.TrimSpace(f.Name)
	if len(name) > a.opts.MaxNameLength {
		name = name[:a.opts.MaxNameLength]
	}
	return name, nil
}

// readLoop consumes inbound frames for one session and submits them to the
// relay engine until the transport fails or closes, then runs teardown.
func (a *Acceptor) readLoop(s *Session) {
	defer a.teardown(s)

	for {
		raw, err := s.transport.ReadFrame()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				a.log.Debug("read loop finished",
					zap.String("session_id", s.ID()),
					zap.Error(&TransportError{Op: "read", SessionID: s.ID(), Err: err}))
			}
			return
		}

		f, err := decodeFrame(raw)
		if err != nil {
			a.log.Debug("discarding unreadable frame",
				zap.String("session_id", s.ID()),
				zap.Error(err))
			continue
		}

		if !s.limiter.allow() {
			a.log.Debug("rate limit exceeded, discarding frame",
				zap.String("session_id", s.ID()),
				zap.String("addr", s.Addr()))
			continue
		}

		a.handleFrame(s, f)
	}
}

func (a *Acceptor) handleFrame(s *Session, f Frame) {
	switch f.Type {
	case KindChat:
		if strings.TrimSpace(f.Body) == "/clear" {
			a.engine.clearScreen(s)
			return
		}
		var vErr *ValidationError
		if err := a.engine.Submit(s.ID(), f.Body); err != nil && !errors.As(err, &vErr) {
			a.log.Debug("submission failed",
				zap.String("session_id", s.ID()),
				zap.Error(err))
		}
	case KindRename:
		// Validation outcomes are surfaced to the client as notices.
		_ = a.engine.Rename(s.ID(), f.Name)
	case KindHello:
		a.log.Debug("ignoring duplicate hello frame",
			zap.String("session_id", s.ID()))
	default:
		a.log.Debug("ignoring unknown frame type",
			zap.String("session_id", s.ID()),
			zap.String("type", string(f.Type)))
	}
}

// teardown removes a session exactly once: the Active -> Closing transition
// is a compare-and-swap, so a read error racing an external shutdown still
// produces a single removal and a single leave broadcast.
func (a *Acceptor) teardown(s *Session) {
	if !s.transitionState(StateActive, StateClosing) {
		return
	}

	a.registry.Remove(s.ID())
	s.closeQueue()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-s.writerDone
		s.forceState(StateClosed)
	}()

	name := s.DisplayName()
	a.engine.systemBroadcast(fmt.Sprintf("%s has left the chat", name), "")
	a.engine.pushUserList()
	a.status.publish(Event{
		Kind:        EventLeft,
		SessionID:   s.ID(),
		DisplayName: name,
		Time:        time.Now(),
	})

	a.log.Info("session left",
		zap.String("session_id", s.ID()),
		zap.String("name", name),
		zap.Int("connected", a.registry.Len()))
}

// shutdown stops accepting, tears down every active session, and waits for
// all session goroutines to finish or the timeout to expire.
func (a *Acceptor) shutdown(timeout time.Duration) error {
	a.cancel()

	for _, s := range a.registry.Snapshot() {
		// Closing the transport unblocks the read loop, which runs teardown.
		s.abort()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
