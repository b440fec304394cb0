package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"stickspin/internal/spin"
)

// answerSnapshots replies to snapshot requests with snap until the test ends.
func answerSnapshots(t *testing.T, snap StateSnapshot) chan<- Event {
	t.Helper()
	events := make(chan Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if req, ok := ev.(RequestStateSnapshot); ok {
					req.Reply <- snap
				}
			}
		}
	}()
	return events
}

func testSnapshot() StateSnapshot {
	return StateSnapshot{
		Attached:           true,
		ExpectedSlice:      spin.Slice3,
		TimerActive:        true,
		Elapsed:            1234 * time.Millisecond,
		CompletedRotations: 2,
		Stats: SessionStats{
			Attempts:     3,
			Timeouts:     1,
			LastRotation: 2500 * time.Millisecond,
			BestRotation: 2 * time.Second,
		},
	}
}

func TestConvertBroadcast_WireShapes(t *testing.T) {
	tests := []struct {
		in   StateBroadcast
		want string
	}{
		{BroadcastElapsedChanged{Elapsed: 1230 * time.Millisecond}, `{"elapsed_s":1.23}`},
		{BroadcastElapsedReset{}, `{}`},
		{BroadcastSliceTicked{Slice: spin.Slice6, Expected: spin.Slice1}, `{"slice":6,"expected":1}`},
		{BroadcastRotationCompleted{Rotations: 4, Duration: 3456 * time.Millisecond}, `{"rotations":4,"duration_s":3.46}`},
		{BroadcastAttemptTimedOut{Elapsed: 5 * time.Second}, `{"elapsed_s":5}`},
		{BroadcastInputChanged{Attached: true}, `{"attached":true}`},
	}
	for _, tt := range tests {
		ev, ok := convertBroadcast(tt.in)
		if !ok {
			t.Fatalf("expected %T to convert", tt.in)
		}
		if ev.Type != broadcastName(tt.in) {
			t.Fatalf("expected type %q, got %q", broadcastName(tt.in), ev.Type)
		}
		b, err := json.Marshal(ev.Data)
		if err != nil {
			t.Fatalf("marshal %s: %v", ev.Type, err)
		}
		if string(b) != tt.want {
			t.Fatalf("%s: expected %s, got %s", ev.Type, tt.want, b)
		}
	}
}

func readFrameType(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case msg := <-c.send:
		var env struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &env); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return env.Type
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for frame")
		return ""
	}
}

func TestRunBroadcaster_CoalescesElapsed(t *testing.T) {
	hub := newTestHub(t, 32, 32)
	runTestHub(t, hub)
	c := newTestClient(hub, "c", 32)
	registerClient(t, hub, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := make(chan StateBroadcast, 16)
	go RunBroadcaster(ctx, hub, src, discardLogger())

	for i := 1; i <= 5; i++ {
		src <- BroadcastElapsedChanged{Elapsed: time.Duration(i) * 10 * time.Millisecond}
	}

	// Only the latest value survives the window.
	select {
	case msg := <-c.send:
		if !strings.Contains(string(msg), `"elapsed_s":0.05`) {
			t.Fatalf("expected latest elapsed value, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for coalesced frame")
	}

	select {
	case msg := <-c.send:
		t.Fatalf("expected a single coalesced frame, got extra %s", msg)
	case <-time.After(2 * wsElapsedCoalesceWindow):
	}
}

func TestRunBroadcaster_FlushesPendingBeforeOtherEvents(t *testing.T) {
	hub := newTestHub(t, 32, 32)
	runTestHub(t, hub)
	c := newTestClient(hub, "c", 32)
	registerClient(t, hub, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := make(chan StateBroadcast, 16)
	go RunBroadcaster(ctx, hub, src, discardLogger())

	src <- BroadcastElapsedChanged{Elapsed: 4 * time.Second}
	src <- BroadcastRotationCompleted{Rotations: 1, Duration: 4 * time.Second}
	src <- BroadcastElapsedReset{}

	for _, want := range []string{"elapsed_changed", "rotation_completed", "elapsed_reset"} {
		if got := readFrameType(t, c); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestHandleStateAPI_ServesSnapshot(t *testing.T) {
	srv := NewServer(discardLogger(), answerSnapshots(t, testSnapshot()), StateServerConfig{})
	mux := http.NewServeMux()
	srv.Register(mux, defaultWSPath)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got wsMessageSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.ExpectedSlice != 3 || got.ElapsedS != 1.23 || got.CompletedRotations != 2 {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if got.Stats.Attempts != 3 || got.Stats.BestRotationS != 2 {
		t.Fatalf("unexpected stats %+v", got.Stats)
	}
}

func TestHandleStateAPI_RejectsPost(t *testing.T) {
	srv := NewServer(discardLogger(), answerSnapshots(t, testSnapshot()), StateServerConfig{})
	mux := http.NewServeMux()
	srv.Register(mux, defaultWSPath)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/state", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleStateWS_SendsStateInit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := NewServer(discardLogger(), answerSnapshots(t, testSnapshot()), StateServerConfig{})
	go srv.Hub().Run(ctx)

	mux := http.NewServeMux()
	srv.Register(mux, defaultWSPath)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + defaultWSPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env struct {
		Type string            `json:"type"`
		Data wsMessageSnapshot `json:"data"`
	}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read state_init: %v", err)
	}
	if env.Type != "state_init" {
		t.Fatalf("expected state_init, got %q", env.Type)
	}
	if !env.Data.Attached || env.Data.CompletedRotations != 2 {
		t.Fatalf("unexpected state_init payload %+v", env.Data)
	}
}
