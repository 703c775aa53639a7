package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Shutdowner is anything holding connections the HTTP server no longer tracks,
// hijacked WebSockets typically.
type Shutdowner interface {
	Shutdown(ctx context.Context) error
}

// ServerWorker runs the HTTP server under the supervisor.
type ServerWorker struct {
	log             *slog.Logger
	server          *http.Server
	live            Shutdowner
	shutdownTimeout time.Duration
}

func NewServerWorker(log *slog.Logger, server *http.Server, live Shutdowner, shutdownTimeout time.Duration) *ServerWorker {
	return &ServerWorker{log: log, server: server, live: live, shutdownTimeout: shutdownTimeout}
}

// Run serves until ctx is canceled then drains in-flight requests and live connections.
// A listen failure is returned so the supervisor can retry.
func (w *ServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", w.server.Addr, err)
	}

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting HTTP server", "address", listener.Addr().String(), "at", time.Now().UTC())
		if err := w.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err, ok := <-errChan:
		if !ok {
			return nil
		}
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
	}

	w.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer cancel()
	// Stop accepting first, hijacked connections are drained afterwards
	if err := w.server.Shutdown(shutdownCtx); err != nil {
		w.log.Warn("HTTP server not drained", "error", err)
	}
	if w.live != nil {
		if err := w.live.Shutdown(shutdownCtx); err != nil {
			w.log.Warn("Live connections not drained", "error", err)
		}
	}
	return nil
}
