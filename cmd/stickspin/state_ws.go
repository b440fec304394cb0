package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ============================================================================
// State WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
// This file implements:
//   - A Hub that tracks connected WebSocket clients
//   - Per-client write pumps so one slow client doesn't block others
//   - A broadcaster loop that reads reducer-emitted state broadcasts and fans out
//   - GET /api/state, answered through the reducer loop
//
// Constraints:
//   - DaemonState remains daemon-owned; never expose *DaemonState to other goroutines.
//   - Snapshots (state_init, /api/state) go through the reducer/event loop.
//   - Slow clients are disconnected when their send buffer fills.
//
// Messages are JSON text frames with an envelope: {type, ts, data}.
// ============================================================================

// wsStatsData is the session statistics block of a snapshot.
type wsStatsData struct {
	Attempts      int     `json:"attempts"`
	Timeouts      int     `json:"timeouts"`
	LastRotationS float64 `json:"last_rotation_s"`
	BestRotationS float64 `json:"best_rotation_s"`
}

// wsMessageSnapshot is the JSON payload of "state_init" and /api/state.
type wsMessageSnapshot struct {
	Attached           bool        `json:"attached"`
	ExpectedSlice      int         `json:"expected_slice"`
	TimerActive        bool        `json:"timer_active"`
	ElapsedS           float64     `json:"elapsed_s"`
	CompletedRotations int         `json:"completed_rotations"`
	StickX             float64     `json:"stick_x"`
	StickY             float64     `json:"stick_y"`
	Stats              wsStatsData `json:"stats"`
}

type wsElapsedData struct {
	ElapsedS float64 `json:"elapsed_s"`
}

type wsSliceTickedData struct {
	Slice    int `json:"slice"`
	Expected int `json:"expected"`
}

type wsRotationCompletedData struct {
	Rotations int     `json:"rotations"`
	DurationS float64 `json:"duration_s"`
}

type wsInputChangedData struct {
	Attached bool   `json:"attached"`
	Reason   string `json:"reason,omitempty"`
}

// wsOutboundEvent is a pre-typed, externally-consumable state event.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time // optional timestamp; zero means use now
}

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string      `json:"type"`
	Ts   *time.Time  `json:"ts,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

// roundSeconds converts d to seconds with two decimals.
func roundSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*100) / 100
}

func snapshotPayload(snap StateSnapshot) wsMessageSnapshot {
	return wsMessageSnapshot{
		Attached:           snap.Attached,
		ExpectedSlice:      int(snap.ExpectedSlice),
		TimerActive:        snap.TimerActive,
		ElapsedS:           roundSeconds(snap.Elapsed),
		CompletedRotations: snap.CompletedRotations,
		StickX:             snap.Stick.X,
		StickY:             snap.Stick.Y,
		Stats: wsStatsData{
			Attempts:      snap.Stats.Attempts,
			Timeouts:      snap.Stats.Timeouts,
			LastRotationS: roundSeconds(snap.Stats.LastRotation),
			BestRotationS: roundSeconds(snap.Stats.BestRotation),
		},
	}
}

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size.
	// If zero, a conservative default is used.
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size.
	// If zero, a conservative default is used.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Collect slow clients first, then remove them after we unlock.
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeCloseChan(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		// Closing send signals writePump to exit.
		safeCloseChan(c.send)

		h.logger.Info("ws client disconnected", "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // ignore "close of closed channel"
	}()
	close(ch)
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger
}

// NewClient creates a client with a buffered send channel.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait = 5 * time.Second

	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// wsElapsedCoalesceWindow is the maximum time window during which elapsed
// updates are coalesced (latest-wins) before broadcasting to clients.
const wsElapsedCoalesceWindow = 50 * time.Millisecond

// closeStatus extracts a human-readable websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump, kind string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "remote_addr", c.remoteAddr, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting ("+kind+")", "remote_addr", c.remoteAddr, "error", err)
}

// writePump writes messages from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed: hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", "write error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", "ping error", err)
				return
			}
		}
	}
}

// readPump reads and discards incoming messages to detect disconnects and handle control frames.
// It exits on read error, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", "read error", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP handlers
// ============================================================================

// snapshotTimeout bounds the reducer round-trip for a snapshot.
const snapshotTimeout = time.Second

var errSnapshotUnavailable = errors.New("state snapshot unavailable")

// requestSnapshot asks the reducer loop for a StateSnapshot.
func requestSnapshot(ctx context.Context, events chan<- Event) (StateSnapshot, error) {
	if events == nil {
		return StateSnapshot{}, errSnapshotUnavailable
	}

	waitCtx := ctx
	if _, has := ctx.Deadline(); !has {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, snapshotTimeout)
		defer cancel()
	}

	reply := make(chan StateSnapshot, 1)
	select {
	case <-waitCtx.Done():
		return StateSnapshot{}, waitCtx.Err()
	case events <- RequestStateSnapshot{Reply: reply}:
	}

	select {
	case <-waitCtx.Done():
		return StateSnapshot{}, waitCtx.Err()
	case snap := <-reply:
		return snap, nil
	}
}

type Server struct {
	logger *slog.Logger

	hub *Hub

	// Required for snapshot requests (through reducer/event loop).
	events chan<- Event
}

type StateServerConfig struct {
	Hub HubConfig
}

// NewServer constructs the state server components. Call Register on a mux,
// start hub.Run(ctx), and start the broadcaster loop.
func NewServer(logger *slog.Logger, events chan<- Event, cfg StateServerConfig) *Server {
	return &Server{
		logger: logger,
		hub:    NewHub(logger, cfg.Hub),
		events: events,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register registers the WS handler at wsPath and GET /api/state on mux.
func (s *Server) Register(mux *http.ServeMux, wsPath string) {
	if mux == nil {
		return
	}
	mux.HandleFunc(wsPath, s.handleStateWS)
	mux.HandleFunc("/api/state", s.handleStateAPI)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS upgrades and registers a client, then sends state_init.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)

	// Register client first so broadcasts can reach it.
	s.hub.register <- client

	// The pumps outlive the handler; net/http cancels r.Context() on return.
	go client.writePump(context.Background())
	go client.readPump(context.Background())

	snap, err := requestSnapshot(r.Context(), s.events)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "error", err)
		}
		return
	}

	now := time.Now().UTC()
	initMsg, err := json.Marshal(envelope{
		Type: "state_init",
		Ts:   &now,
		Data: snapshotPayload(snap),
	})
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "error", err)
		return
	}

	// Enqueue init message; if client is already slow, disconnect.
	select {
	case client.send <- initMsg:
	default:
		s.hub.unregister <- client
	}
}

// handleStateAPI serves GET /api/state.
func (s *Server) handleStateAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap, err := requestSnapshot(r.Context(), s.events)
	if err != nil {
		s.logger.Warn("state api snapshot failed", "error", err)
		http.Error(w, errSnapshotUnavailable.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshotPayload(snap)); err != nil {
		s.logger.Warn("state api write failed", "error", err)
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster reads reducer-emitted StateBroadcast events, marshals them, and broadcasts
// them to all hub clients. Intended to run as a single goroutine.
//
// elapsed_changed is rate-limited: the latest pending value is flushed at most
// once every wsElapsedCoalesceWindow. Any other broadcast flushes the pending
// value first so ordering is preserved.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var pending *wsOutboundEvent
	var timer *time.Timer
	var timerCh <-chan time.Time

	emit := func(ev wsOutboundEvent) {
		ts := ev.At
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		msg, err := json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", ev.Type)
			return
		}
		hub.BroadcastBytes(msg)
	}

	flushPending := func() {
		if pending == nil {
			return
		}
		emit(*pending)
		pending = nil
	}

	stopTimer := func() {
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
		timerCh = nil
	}

	for {
		select {
		case <-ctx.Done():
			flushPending()
			stopTimer()
			return

		case <-timerCh:
			flushPending()
			// The window closed quietly; the next update opens a new one.
			timer = nil
			timerCh = nil

		case b, ok := <-src:
			if !ok {
				flushPending()
				stopTimer()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			ev, ok := convertBroadcast(b)
			if !ok {
				continue
			}

			if ev.Type == "elapsed_changed" {
				copyEv := ev
				pending = &copyEv
				if timer == nil {
					timer = time.NewTimer(wsElapsedCoalesceWindow)
					timerCh = timer.C
				}
				continue
			}

			// Other events are emitted immediately, after any pending elapsed value.
			flushPending()
			stopTimer()
			emit(ev)
		}
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastElapsedChanged:
		return wsOutboundEvent{
			Type: "elapsed_changed",
			Data: wsElapsedData{ElapsedS: roundSeconds(ev.Elapsed)},
			At:   ev.At,
		}, true

	case BroadcastElapsedReset:
		return wsOutboundEvent{
			Type: "elapsed_reset",
			Data: struct{}{},
			At:   ev.At,
		}, true

	case BroadcastSliceTicked:
		return wsOutboundEvent{
			Type: "slice_ticked",
			Data: wsSliceTickedData{Slice: int(ev.Slice), Expected: int(ev.Expected)},
			At:   ev.At,
		}, true

	case BroadcastRotationCompleted:
		return wsOutboundEvent{
			Type: "rotation_completed",
			Data: wsRotationCompletedData{Rotations: ev.Rotations, DurationS: roundSeconds(ev.Duration)},
			At:   ev.At,
		}, true

	case BroadcastAttemptTimedOut:
		return wsOutboundEvent{
			Type: "attempt_timed_out",
			Data: wsElapsedData{ElapsedS: roundSeconds(ev.Elapsed)},
			At:   ev.At,
		}, true

	case BroadcastInputChanged:
		return wsOutboundEvent{
			Type: "input_changed",
			Data: wsInputChangedData{Attached: ev.Attached, Reason: ev.Reason},
			At:   ev.At,
		}, true

	default:
		return wsOutboundEvent{}, false
	}
}
