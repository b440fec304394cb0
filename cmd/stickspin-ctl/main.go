package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// stickspin-ctl - Command-line IPC Client
// ============================================================================
// Sends events to the stickspin daemon over its Unix socket. Useful for
// driving the daemon without a gamepad.
//
// Usage:
//   stickspin-ctl reset
//   stickspin-ctl sample 0.5 0.8
//   stickspin-ctl release
//   stickspin-ctl spin -step-ms 100 -laps 2
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/stickspin.sock)
// ============================================================================

const defaultSocketPath = "/tmp/stickspin.sock"

// Event types (duplicated from the daemon for a standalone binary)
type Event interface{}

type StickMoved struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type ResetGesture struct {
	Origin string `json:"origin,omitempty"`
}

type AttachInput struct{}

type DetachInput struct {
	Reason string `json:"reason,omitempty"`
}

// EventEnvelope wraps events for JSON
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// sliceCenters are the stick angles (degrees, counter-clockwise from +x) at
// the middle of each slice, in rotation order.
var sliceCenters = []float64{60, 0, -60, -120, -165, 120}

const spinMagnitude = 0.9

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("stickspin-ctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	socketPath := fs.String("socket", defaultSocketPath, "Unix domain socket path")
	fs.Usage = func() { printUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr)
		return 1
	}

	var script []step
	switch rest[0] {
	case "reset":
		script = []step{{ev: ResetGesture{Origin: "ctl"}}}

	case "sample":
		if len(rest) < 3 {
			fmt.Fprintln(stderr, "error: sample requires X and Y")
			return 1
		}
		x, errX := strconv.ParseFloat(rest[1], 64)
		y, errY := strconv.ParseFloat(rest[2], 64)
		if err := errors.Join(errX, errY); err != nil {
			fmt.Fprintf(stderr, "error: invalid sample: %v\n", err)
			return 1
		}
		script = []step{{ev: StickMoved{X: x, Y: y}}}

	case "release":
		script = []step{{ev: StickMoved{}}}

	case "attach":
		script = []step{{ev: AttachInput{}}}

	case "detach":
		script = []step{{ev: DetachInput{Reason: "ctl"}}}

	case "spin":
		sfs := flag.NewFlagSet("spin", flag.ContinueOnError)
		sfs.SetOutput(stderr)
		stepMS := sfs.Int("step-ms", 100, "Time to hold each slice in milliseconds")
		laps := sfs.Int("laps", 1, "Number of rotations")
		if err := sfs.Parse(rest[1:]); err != nil {
			return 2
		}
		if *stepMS <= 0 || *laps <= 0 {
			fmt.Fprintln(stderr, "error: -step-ms and -laps must be > 0")
			return 1
		}
		script = spinScript(*laps, time.Duration(*stepMS)*time.Millisecond)

	case "help":
		printUsage(stdout)
		return 0

	default:
		fmt.Fprintf(stderr, "error: unknown command: %s\n", rest[0])
		printUsage(stderr)
		return 1
	}

	if err := sendScript(*socketPath, script); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "ok")
	return 0
}

// step is one event followed by a pause.
type step struct {
	ev   Event
	hold time.Duration
}

// spinScript walks the stick counter-clockwise through all six slices laps
// times, holding each for hold, then releases it.
func spinScript(laps int, hold time.Duration) []step {
	script := make([]step, 0, laps*len(sliceCenters)+1)
	for lap := 0; lap < laps; lap++ {
		for _, deg := range sliceCenters {
			rad := deg * math.Pi / 180
			script = append(script, step{
				ev:   StickMoved{X: spinMagnitude * math.Cos(rad), Y: spinMagnitude * math.Sin(rad)},
				hold: hold,
			})
		}
	}
	return append(script, step{ev: StickMoved{}})
}

// sendScript sends every step over one connection and checks each response.
func sendScript(socketPath string, script []step) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	for i, s := range script {
		data, err := marshalEvent(s.ev)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
			return fmt.Errorf("send event %d: %w", i, err)
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		var resp IPCResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if resp.Status == "error" {
			return fmt.Errorf("daemon error: %s", resp.Error)
		}

		if s.hold > 0 {
			time.Sleep(s.hold)
		}
	}
	return nil
}

func marshalEvent(ev Event) ([]byte, error) {
	var env EventEnvelope

	switch e := ev.(type) {
	case StickMoved:
		env.Type = "stick_moved"
		data, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("marshal StickMoved: %w", err)
		}
		env.Data = data

	case ResetGesture:
		env.Type = "reset_gesture"
		if e.Origin != "" {
			data, err := json.Marshal(e)
			if err != nil {
				return nil, fmt.Errorf("marshal ResetGesture: %w", err)
			}
			env.Data = data
		}

	case AttachInput:
		env.Type = "attach_input"

	case DetachInput:
		env.Type = "detach_input"
		if e.Reason != "" {
			data, err := json.Marshal(e)
			if err != nil {
				return nil, fmt.Errorf("marshal DetachInput: %w", err)
			}
			env.Data = data
		}

	default:
		return nil, fmt.Errorf("unknown event type: %T", ev)
	}

	return json.Marshal(env)
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `stickspin-ctl - Control the stickspin daemon via IPC

Usage:
  stickspin-ctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: %s)

Commands:
  reset                       Clear the attempt in progress
  sample <x> <y>              Move the stick to (x, y), each in [-1, 1]
  release                     Return the stick to center
  attach                      Enable the input source
  detach                      Disable the input source
  spin [-step-ms N] [-laps N] Walk the stick through full rotations
  help                        Show this help message

Examples:
  stickspin-ctl spin -step-ms 50
  stickspin-ctl -socket /run/stickspin.sock reset
`, defaultSocketPath)
}
