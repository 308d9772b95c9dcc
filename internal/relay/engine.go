package relay

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Engine validates and dispatches messages. It may be invoked concurrently
// from any number of session read loops; the registry is the only shared
// state it touches.
type Engine struct {
	opts     Options
	registry *Registry
	history  *history
	log      *zap.Logger
}

func newEngine(opts Options, registry *Registry, hist *history, log *zap.Logger) *Engine {
	return &Engine{
		opts:     opts,
		registry: registry,
		history:  hist,
		log:      log,
	}
}

// Submit validates a chat body from the given sender and broadcasts it.
// Empty bodies (after trimming) are dropped silently; oversize bodies are
// rejected with exactly one private notice to the sender. Either rejection is
// reported as a ValidationError and nothing is broadcast.
//
// Messages submitted by one sender are dispatched in submission order, so
// every still-connected recipient observes them in that same relative order.
func (e *Engine) Submit(senderID, body string) error {
	sender, ok := e.registry.Get(senderID)
	if !ok {
		return ErrUnknownSession
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return &ValidationError{Reason: "empty message"}
	}
	if len(body) > e.opts.MaxMessageBytes {
		e.notice(sender, fmt.Sprintf(
			"Message rejected: %d bytes exceeds the %d byte limit.",
			len(body), e.opts.MaxMessageBytes))
		return &ValidationError{Reason: "message too long"}
	}

	msg := Message{
		Kind:       KindChat,
		SenderID:   senderID,
		SenderName: sender.DisplayName(),
		Body:       body,
		Timestamp:  time.Now(),
	}
	e.history.append(msg)

	exclude := ""
	if !e.opts.Echo {
		exclude = senderID
	}
	e.dispatch(msg, exclude)
	return nil
}

// Rename changes the sender's display name. A name currently in use by
// another session is rejected with a private notice; handshake collisions
// remain allowed, only renames onto a live name are refused.
func (e *Engine) Rename(senderID, newName string) error {
	sender, ok := e.registry.Get(senderID)
	if !ok {
		return ErrUnknownSession
	}

	newName = strings.TrimSpace(newName)
	if newName == "" || len(newName) > e.opts.MaxNameLength {
		e.notice(sender, fmt.Sprintf(
			"Invalid name: must be 1 to %d characters.", e.opts.MaxNameLength))
		return &ValidationError{Reason: "invalid display name"}
	}

	for _, other := range e.registry.Snapshot() {
		if other.ID() != senderID && other.DisplayName() == newName {
			e.notice(sender, fmt.Sprintf("The name %q is already taken.", newName))
			return &ValidationError{Reason: "display name taken"}
		}
	}

	oldName := sender.DisplayName()
	if oldName == newName {
		return nil
	}
	sender.setDisplayName(newName)

	e.notice(sender, fmt.Sprintf("You are now known as %s.", newName))
	e.systemBroadcast(fmt.Sprintf("%s changed their name to %s", oldName, newName), senderID)
	e.pushUserList()

	e.log.Info("session renamed",
		zap.String("session_id", senderID),
		zap.String("old_name", oldName),
		zap.String("new_name", newName))
	return nil
}

// systemBroadcast dispatches a server message to every session except the
// one identified by excludeID (empty means nobody is excluded).
func (e *Engine) systemBroadcast(text, excludeID string) {
	msg := Message{
		Kind:       KindSystem,
		SenderID:   ServerSenderID,
		SenderName: ServerSenderID,
		Body:       text,
		Timestamp:  time.Now(),
	}
	e.dispatch(msg, excludeID)
}

// notice sends a private server message to a single session.
func (e *Engine) notice(s *Session, text string) {
	e.deliver(s, encodeFrame(Frame{
		Type: KindNotice,
		Body: text,
		Sent: time.Now().UnixMilli(),
	}))
}

// clearScreen tells one client to wipe its local message view.
func (e *Engine) clearScreen(s *Session) {
	e.deliver(s, encodeFrame(Frame{
		Type:  KindNotice,
		Body:  "Chat history cleared for you.",
		Sent:  time.Now().UnixMilli(),
		Clear: true,
	}))
}

// pushUserList sends the current display-name list to every session.
func (e *Engine) pushUserList() {
	frame := encodeFrame(Frame{
		Type:  KindUsers,
		Users: e.registry.Names(),
		Sent:  time.Now().UnixMilli(),
	})
	for _, s := range e.registry.Snapshot() {
		e.deliver(s, frame)
	}
}

// replayHistory sends the newest retained messages to one session, oldest
// first, preceded by a notice saying how many follow.
func (e *Engine) replayHistory(s *Session) {
	recent := e.history.recent(e.opts.HistoryReplay)
	if len(recent) == 0 {
		return
	}

	e.notice(s, fmt.Sprintf("Showing the last %d messages.", len(recent)))
	for _, msg := range recent {
		e.deliver(s, encodeFrame(msg.frame()))
	}
}

// dispatch fans msg out to the current registry snapshot. Delivery failure to
// one session never blocks or fails delivery to the others.
func (e *Engine) dispatch(msg Message, excludeID string) {
	frame := encodeFrame(msg.frame())
	for _, s := range e.registry.Snapshot() {
		if excludeID != "" && s.ID() == excludeID {
			continue
		}
		e.deliver(s, frame)
	}
}

// deliver enqueues one frame for one session. A capacity failure disconnects
// that session; its read loop then runs the normal teardown. A session
// already closing is skipped silently.
func (e *Engine) deliver(s *Session, frame []byte) {
	err := s.enqueue(frame)
	if err == nil {
		return
	}

	switch err.(type) {
	case *CapacityError:
		e.log.Warn("outbound queue overflow, disconnecting slow client",
			zap.String("session_id", s.ID()),
			zap.String("addr", s.Addr()),
			zap.String("policy", string(e.opts.OverflowPolicy)))
		s.abort()
	default:
		e.log.Debug("skipping dispatch to closing session",
			zap.String("session_id", s.ID()))
	}
}
