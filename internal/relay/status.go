package relay

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Status is a point-in-time read of the relay's public state. It contains no
// formatting; rendering belongs to the consumer.
type Status struct {
	ConnectedClients   int
	ServerIdentity     string
	Uptime             time.Duration
	MessageCount       int
	ProcessMemoryBytes uint64
}

// EventKind labels a session lifecycle event.
type EventKind string

const (
	// EventJoined fires after a session is registered and announced.
	EventJoined EventKind = "joined"
	// EventLeft fires after a session is removed and announced.
	EventLeft EventKind = "left"
)

// Event notifies status listeners of a membership change.
type Event struct {
	Kind        EventKind
	SessionID   string
	DisplayName string
	Time        time.Time
}

// StatusReporter provides Status reads and join/leave event callbacks. All
// methods are safe for concurrent use.
type StatusReporter struct {
	registry *Registry
	history  *history
	identity string
	started  time.Time
	proc     *process.Process

	mu        sync.RWMutex
	listeners []func(Event)
}

func newStatusReporter(registry *Registry, hist *history, identity string) *StatusReporter {
	if identity == "" {
		if host, err := os.Hostname(); err == nil {
			identity = host
		} else {
			identity = "localhost"
		}
	}

	// Process metrics are best-effort; the reporter works without them.
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		proc = nil
	}

	return &StatusReporter{
		registry: registry,
		history:  hist,
		identity: identity,
		started:  time.Now(),
		proc:     proc,
	}
}

// Status returns the current connected count, server identity, uptime, and
// process metadata. It performs no mutation.
func (r *StatusReporter) Status() Status {
	st := Status{
		ConnectedClients: r.registry.Len(),
		ServerIdentity:   r.identity,
		Uptime:           time.Since(r.started),
		MessageCount:     r.history.len(),
	}

	if r.proc != nil {
		if mem, err := r.proc.MemoryInfo(); err == nil {
			st.ProcessMemoryBytes = mem.RSS
		}
	}

	return st
}

// Subscribe registers a callback invoked on every join and leave. Callbacks
// run synchronously on the lifecycle path and must return quickly.
func (r *StatusReporter) Subscribe(fn func(Event)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

func (r *StatusReporter) publish(ev Event) {
	r.mu.RLock()
	listeners := r.listeners
	r.mu.RUnlock()

	for _, fn := range listeners {
		fn(ev)
	}
}
