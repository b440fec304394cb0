package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// stickspin-watch prints the daemon's state stream in a human-readable form.

type frame struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type snapshotData struct {
	Attached           bool    `json:"attached"`
	ExpectedSlice      int     `json:"expected_slice"`
	TimerActive        bool    `json:"timer_active"`
	ElapsedS           float64 `json:"elapsed_s"`
	CompletedRotations int     `json:"completed_rotations"`
	Stats              struct {
		Attempts      int     `json:"attempts"`
		Timeouts      int     `json:"timeouts"`
		LastRotationS float64 `json:"last_rotation_s"`
		BestRotationS float64 `json:"best_rotation_s"`
	} `json:"stats"`
}

type elapsedData struct {
	ElapsedS float64 `json:"elapsed_s"`
}

type sliceTickedData struct {
	Slice    int `json:"slice"`
	Expected int `json:"expected"`
}

type rotationData struct {
	Rotations int     `json:"rotations"`
	DurationS float64 `json:"duration_s"`
}

type inputData struct {
	Attached bool   `json:"attached"`
	Reason   string `json:"reason"`
}

func main() {
	var (
		wsURL   = flag.String("url", "ws://127.0.0.1:3002/ws", "stickspin state websocket URL")
		rawMode = flag.Bool("raw", false, "Print frames exactly as received")
		quiet   = flag.Bool("quiet", false, "Hide elapsed_changed frames")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	var writeMu sync.Mutex

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	go func() {
		for range pingTicker.C {
			writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			writeMu.Unlock()
			if err != nil {
				log.Printf("ping failed: %v", err)
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			// Any frame proves the connection is alive.
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if messageType != websocket.TextMessage {
				fmt.Printf("[BINARY] %d bytes\n", len(message))
				continue
			}
			if *rawMode {
				fmt.Println(string(message))
				continue
			}
			line, show := formatFrame(message)
			if show && *quiet && strings.HasPrefix(line, "elapsed ") {
				show = false
			}
			if show {
				fmt.Println(line)
			}
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// formatFrame renders one state frame as a single line. The second result is
// false for frames that carry nothing worth printing.
func formatFrame(message []byte) (string, bool) {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		return "[TEXT] " + string(message), true
	}

	switch f.Type {
	case "state_init":
		var s snapshotData
		if err := json.Unmarshal(f.Data, &s); err != nil {
			break
		}
		input := "attached"
		if !s.Attached {
			input = "detached"
		}
		return fmt.Sprintf("state: input %s, next slice %d, rotations %d, attempts %d, timeouts %d, best %s",
			input, s.ExpectedSlice, s.CompletedRotations, s.Stats.Attempts, s.Stats.Timeouts,
			formatSeconds(s.Stats.BestRotationS)), true

	case "elapsed_changed":
		var e elapsedData
		if err := json.Unmarshal(f.Data, &e); err != nil {
			break
		}
		return "elapsed " + formatSeconds(e.ElapsedS), true

	case "elapsed_reset":
		return "elapsed --", true

	case "slice_ticked":
		var s sliceTickedData
		if err := json.Unmarshal(f.Data, &s); err != nil {
			break
		}
		return fmt.Sprintf("slice %d ticked, next %d", s.Slice, s.Expected), true

	case "rotation_completed":
		var r rotationData
		if err := json.Unmarshal(f.Data, &r); err != nil {
			break
		}
		return fmt.Sprintf("rotation %d done in %s", r.Rotations, formatSeconds(r.DurationS)), true

	case "attempt_timed_out":
		var e elapsedData
		if err := json.Unmarshal(f.Data, &e); err != nil {
			break
		}
		return "attempt timed out after " + formatSeconds(e.ElapsedS), true

	case "input_changed":
		var in inputData
		if err := json.Unmarshal(f.Data, &in); err != nil {
			break
		}
		if in.Attached {
			return "input attached", true
		}
		if in.Reason != "" {
			return "input detached (" + in.Reason + ")", true
		}
		return "input detached", true

	case "":
		return "", false
	}

	return fmt.Sprintf("[%s] %s", f.Type, string(f.Data)), true
}

func formatSeconds(s float64) string {
	if s <= 0 {
		return "--"
	}
	return fmt.Sprintf("%.2fs", s)
}
