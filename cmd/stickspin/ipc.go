package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// External clients (stickspin-ctl, scripts) send JSON events to the daemon:
// stick samples, reset requests and attach/detach.
//
// Protocol: Line-delimited JSON
//   - Client sends: {"type": "event_name", "data": {...}}
//   - Server responds: {"status": "ok"} or {"status": "error", "error": "msg"}
// ============================================================================

// IPCResponse represents the response sent back to IPC clients
type IPCResponse struct {
	Status string `json:"status"`          // "ok" or "error"
	Error  string `json:"error,omitempty"` // error message if status == "error"
}

// ipcDialTimeout bounds SendIPCEvent's connect and round-trip.
const ipcDialTimeout = 2 * time.Second

// runIPCServer starts the Unix domain socket server.
// It runs until ctx is canceled, at which point it closes the listener and exits.
func runIPCServer(ctx context.Context, socketPath string, events chan<- Event, logger *slog.Logger) error {
	// Remove a stale socket left by a previous run.
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	if err := os.Chmod(socketPath, 0o660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleIPCConnection(ctx, conn, events, logger)
	}
}

// handleIPCConnection processes a single IPC client connection
func handleIPCConnection(ctx context.Context, conn net.Conn, events chan<- Event, logger *slog.Logger) {
	defer conn.Close()

	// Unblock the scanner on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	respond := func(resp IPCResponse) {
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "status", resp.Status, "error", err)
		}
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("IPC received", "line", line)

		// Payload events only; the daemon assigns timestamps via TimedEvent.
		ev, err := UnmarshalEvent([]byte(line))
		if err != nil {
			respond(IPCResponse{Status: "error", Error: fmt.Sprintf("parse event: %v", err)})
			continue
		}

		select {
		case events <- ev:
			respond(IPCResponse{Status: "ok"})
		default:
			respond(IPCResponse{Status: "error", Error: "event queue full"})
		}
	}

	logger.Debug("IPC connection closed")
}

// ============================================================================
// IPC Client
// ============================================================================

// SendIPCEvent sends an event to the daemon via IPC and waits for the response.
func SendIPCEvent(socketPath string, ev Event) error {
	conn, err := net.DialTimeout("unix", socketPath, ipcDialTimeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(ipcDialTimeout))

	data, err := MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send event: %w", err)
	}

	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return fmt.Errorf("ipc error: %s", resp.Error)
	}
	return nil
}
