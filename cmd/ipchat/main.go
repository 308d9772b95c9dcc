// Command ipchat runs the chat relay: one process serving the websocket
// endpoint, the status page, and the stats API on a single public address.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ipchat/internal/relay"
	"ipchat/internal/server"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ipchat terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run keeps the process lifecycle out of main so deferred cleanup always
// executes before the exit code is returned.
func run() (int, error) {
	_ = godotenv.Load()

	cfg, err := server.Load()
	if err != nil {
		return exitConfig, err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return exitConfig, fmt.Errorf("building logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	rly := relay.New(cfg.RelayOptions(), log.Named("relay"))
	rly.StatusReporter().Subscribe(func(ev relay.Event) {
		log.Info("presence change",
			zap.String("event", string(ev.Kind)),
			zap.String("session_id", ev.SessionID),
			zap.String("name", ev.DisplayName),
			zap.Int("connected", rly.Status().ConnectedClients))
	})

	handler := server.NewHandler(rly, cfg, log.Named("http"))
	srv := server.NewHTTPServer(cfg.Addr(), handler.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening",
			zap.String("addr", cfg.Addr()),
			zap.String("identity", rly.Status().ServerIdentity))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutdown signal received")
		_ = server.ShutdownHTTPServer(srv, shutdownTimeout, log)
		if err := rly.Shutdown(shutdownTimeout); err != nil {
			log.Warn("relay shutdown timed out, some goroutines may still be running")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}
