package relay

import "sync"

// history is a bounded ring of recently accepted chat messages, replayed to
// newcomers. Only chat messages are retained; system traffic is not.
type history struct {
	mu      sync.Mutex
	limit   int
	entries []Message
}

func newHistory(limit int) *history {
	return &history{limit: limit}
}

func (h *history) append(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, m)
	if len(h.entries) > h.limit {
		h.entries = h.entries[len(h.entries)-h.limit:]
	}
}

// recent returns up to n of the newest messages, oldest first.
func (h *history) recent(n int) []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > len(h.entries) {
		n = len(h.entries)
	}
	if n <= 0 {
		return nil
	}

	out := make([]Message, n)
	copy(out, h.entries[len(h.entries)-n:])
	return out
}

func (h *history) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.entries)
}
