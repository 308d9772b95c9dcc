package server

import "net/http"

// Routes configures and returns the application's HTTP routes.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.StatusPage)
	mux.HandleFunc("/ws", h.WebSocket)
	mux.HandleFunc("/stats", h.Stats)
	mux.HandleFunc("/healthz", h.Health)
	return mux
}
