package relay

import "time"

// OverflowPolicy selects what happens when a session's outbound queue is full.
type OverflowPolicy string

const (
	// OverflowDropOldest discards the oldest queued frame to make room.
	OverflowDropOldest OverflowPolicy = "drop-oldest"
	// OverflowDisconnect tears down the slow session instead of dropping.
	OverflowDisconnect OverflowPolicy = "disconnect"
)

// Options holds the configuration points of the relay core. The zero value is
// not usable directly; New sanitizes every field to the defaults below.
type Options struct {
	// Echo controls whether a sender receives its own chat messages back.
	Echo bool

	// MaxQueueDepth bounds each session's outbound queue.
	MaxQueueDepth int

	// OverflowPolicy applies when an outbound queue is full.
	OverflowPolicy OverflowPolicy

	// MaxMessageBytes bounds the chat body length; longer submissions are
	// rejected with a private notice to the sender.
	MaxMessageBytes int

	// MaxNameLength bounds display names. Longer handshake names are
	// truncated; longer renames are rejected.
	MaxNameLength int

	// HandshakeTimeout bounds the wait for the display-name announcement.
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single outbound frame write.
	WriteTimeout time.Duration

	// HistoryLimit bounds the retained recent-message ring.
	HistoryLimit int

	// HistoryReplay is how many retained messages a newcomer receives.
	HistoryReplay int

	// RateLimitBurst and RateLimitRefillInterval configure the per-session
	// token bucket applied to inbound frames.
	RateLimitBurst          int
	RateLimitRefillInterval time.Duration

	// ServerName is the identity reported by the status surface. Falls back
	// to the OS hostname when empty.
	ServerName string
}

// DefaultOptions returns the options used when a field is unset.
func DefaultOptions() Options {
	return Options{
		Echo:                    true,
		MaxQueueDepth:           256,
		OverflowPolicy:          OverflowDropOldest,
		MaxMessageBytes:         4096,
		MaxNameLength:           20,
		HandshakeTimeout:        10 * time.Second,
		WriteTimeout:            10 * time.Second,
		HistoryLimit:            100,
		HistoryReplay:           20,
		RateLimitBurst:          5,
		RateLimitRefillInterval: time.Second,
	}
}

func (o Options) sanitized() Options {
	def := DefaultOptions()

	if o.MaxQueueDepth <= 0 {
		o.MaxQueueDepth = def.MaxQueueDepth
	}
	if o.OverflowPolicy != OverflowDropOldest && o.OverflowPolicy != OverflowDisconnect {
		o.OverflowPolicy = def.OverflowPolicy
	}
	if o.MaxMessageBytes <= 0 {
		o.MaxMessageBytes = def.MaxMessageBytes
	}
	if o.MaxNameLength <= 0 {
		o.MaxNameLength = def.MaxNameLength
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = def.HandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = def.HistoryLimit
	}
	if o.HistoryReplay <= 0 || o.HistoryReplay > o.HistoryLimit {
		o.HistoryReplay = min(def.HistoryReplay, o.HistoryLimit)
	}
	if o.RateLimitBurst <= 0 {
		o.RateLimitBurst = def.RateLimitBurst
	}
	if o.RateLimitRefillInterval <= 0 {
		o.RateLimitRefillInterval = def.RateLimitRefillInterval
	}

	return o
}

// MaxFrameBytes is the transport-level frame cap. It leaves room above the
// chat-body limit so an oversize submission can still be read, rejected, and
// answered with a notice instead of killing the connection.
func (o Options) MaxFrameBytes() int64 {
	return int64(2*o.MaxMessageBytes + 1024)
}
