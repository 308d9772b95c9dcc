package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// NewHTTPServer creates an HTTP server for the given address and handler.
// The read/write timeouts apply to plain HTTP requests only; upgraded
// websocket connections manage their own deadlines.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ShutdownHTTPServer gracefully shuts the server down, waiting up to timeout
// for in-flight requests to finish.
func ShutdownHTTPServer(srv *http.Server, timeout time.Duration, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http server shutdown error", zap.Error(err))
		return err
	}

	log.Info("http server shutdown completed")
	return nil
}
