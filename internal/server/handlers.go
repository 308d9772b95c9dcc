package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ipchat/internal/relay"
)

// Handler bundles the relay core with the HTTP-facing configuration. It is
// constructed explicitly and carries no global state.
type Handler struct {
	relay    *relay.Relay
	cfg      Config
	upgrader websocket.Upgrader
	log      *zap.Logger
}

// NewHandler builds the HTTP handler set around an assembled relay.
func NewHandler(r *relay.Relay, cfg Config, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	policy := newOriginPolicy(cfg.AllowedOrigins, log)

	return &Handler{
		relay: r,
		cfg:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.check,
		},
		log: log,
	}
}

// WebSocket upgrades the request and hands the connection to the relay
// acceptor. The acceptor runs the handshake and owns the connection from
// there on; handshake failures have already closed it.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.",
			http.StatusMethodNotAllowed)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed",
			zap.String("addr", r.RemoteAddr),
			zap.Error(err))
		return
	}

	transport := newWSTransport(conn, h.relay.Options().MaxFrameBytes())
	if err := h.relay.Accept(transport, r.RemoteAddr); err != nil {
		var hsErr *relay.HandshakeError
		if !errors.As(err, &hsErr) && !errors.Is(err, relay.ErrRelayClosed) {
			h.log.Warn("accepting connection failed",
				zap.String("addr", r.RemoteAddr),
				zap.Error(err))
		}
	}
}

// Stats returns the live server statistics as JSON.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	st := h.relay.Status()

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{
		"server":         st.ServerIdentity,
		"active_users":   st.ConnectedClients,
		"message_count":  st.MessageCount,
		"uptime_seconds": int64(st.Uptime.Seconds()),
		"memory_bytes":   st.ProcessMemoryBytes,
	})
	if err != nil {
		h.log.Warn("writing stats response failed", zap.Error(err))
	}
}

// Health is a plain text liveness check.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "ipchat server is running!")
}

const statusPageTemplate = `<!DOCTYPE html>
<html>
<head>
    <title>ipchat</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 0 auto; padding: 20px; }
        h1 { color: #4a6fa5; }
        .card { background: #f5f5f5; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
        code { font-family: monospace; background: #e0e0e0; padding: 2px 4px; }
        .success { color: #28a745; }
    </style>
</head>
<body>
    <h1>ipchat</h1>
    <div class="card">
        <h2>Server Status: <span class="success">Running</span></h2>
        <p>Server identity: <code>%s</code></p>
        <p>Connected users: <strong>%d</strong></p>
        <p>Messages in history: <strong>%d</strong></p>
        <p>Server uptime: <strong>%d minutes</strong></p>
    </div>
    <div class="card">
        <h2>How to Connect</h2>
        <p>Point a chat client at <code>ws://&lt;this-host&gt;/ws</code> and send a
        <code>hello</code> frame with your display name. You can share this
        address with anyone to let them join the chat.</p>
    </div>
</body>
</html>
`

// StatusPage renders the human-readable status and connect page.
func (h *Handler) StatusPage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	st := h.relay.Status()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := fmt.Fprintf(w, statusPageTemplate,
		st.ServerIdentity,
		st.ConnectedClients,
		st.MessageCount,
		int64(st.Uptime.Minutes()))
	if err != nil {
		h.log.Warn("writing status page failed", zap.Error(err))
	}
}
