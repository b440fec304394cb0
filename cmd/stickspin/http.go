package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	httpReadHeaderTimeout = 5 * time.Second
	httpShutdownTimeout   = 3 * time.Second
)

// runHTTPServer serves handler on port and shuts it down gracefully when ctx
// is canceled.
func runHTTPServer(ctx context.Context, port int, handler http.Handler, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("HTTP listen: %w", err)
	}
	return serveHTTP(ctx, ln, handler, logger)
}

// serveHTTP serves on an existing listener. It owns ln.
func serveHTTP(ctx context.Context, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	logger.Info("HTTP server listening", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: httpReadHeaderTimeout,
	}

	errCh := make(chan error, 1)

	go func() {
		// Serve returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
