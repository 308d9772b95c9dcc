package relay

import (
	"time"

	"go.uber.org/zap"
)

// Relay is the assembled connection/session core.
type Relay struct {
	opts     Options
	registry *Registry
	engine   *Engine
	acceptor *Acceptor
	status   *StatusReporter
}

// New builds a relay with sanitized options. A nil logger disables logging.
func New(opts Options, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	opts = opts.sanitized()

	registry := NewRegistry()
	hist := newHistory(opts.HistoryLimit)
	engine := newEngine(opts, registry, hist, log)
	status := newStatusReporter(registry, hist, opts.ServerName)
	acceptor := newAcceptor(opts, registry, engine, status, log)

	return &Relay{
		opts:     opts,
		registry: registry,
		engine:   engine,
		acceptor: acceptor,
		status:   status,
	}
}

// Options returns the sanitized options the relay runs with.
func (r *Relay) Options() Options { return r.opts }

// Accept hands a new client transport to the acceptor. See Acceptor.Accept.
func (r *Relay) Accept(t Transport, remoteAddr string) error {
	return r.acceptor.Accept(t, remoteAddr)
}

// Submit relays a chat body on behalf of a registered session.
func (r *Relay) Submit(senderID, body string) error {
	return r.engine.Submit(senderID, body)
}

// Registry exposes the active-session registry.
func (r *Relay) Registry() *Registry { return r.registry }

// StatusReporter exposes the read-only status surface.
func (r *Relay) StatusReporter() *StatusReporter { return r.status }

// Status is shorthand for StatusReporter().Status().
func (r *Relay) Status() Status { return r.status.Status() }

// Shutdown closes every transport, releases all sessions, and waits up to
// timeout for the relay's goroutines to finish.
func (r *Relay) Shutdown(timeout time.Duration) error {
	return r.acceptor.shutdown(timeout)
}
