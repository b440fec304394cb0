package main

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Events
// ============================================================================
// Events are the inputs of the reducer: stick samples and requests from the
// input devices, IPC and the terminal display, the tick cadence, and
// observations fed back by the effects layer.
// ============================================================================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// StickMoved carries the latest normalised stick position. It is sampled on
// the next Tick.
type StickMoved struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (StickMoved) eventMarker() {}

// ResetGesture clears the attempt in progress.
type ResetGesture struct {
	Origin string `json:"origin,omitempty"` // e.g. "button", "ipc", "terminal"
}

func (ResetGesture) eventMarker() {}

// AttachInput requests the input source be enabled and the gesture state reset.
type AttachInput struct{}

func (AttachInput) eventMarker() {}

// DetachInput requests the input source be disabled.
type DetachInput struct {
	Reason string `json:"reason,omitempty"`
}

func (DetachInput) eventMarker() {}

// InputLost is emitted when an input device fails while running.
type InputLost struct {
	Reason string
}

func (InputLost) eventMarker() {}

// Tick is emitted by the daemon loop at a fixed cadence.
// Dt is the wall-clock delta since the previous tick.
type Tick struct {
	Now time.Time
	Dt  time.Duration
}

func (Tick) eventMarker() {}

// TimedEvent wraps an externally sourced event with its arrival time.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// RequestStateSnapshot asks the reducer for a coherent snapshot.
// Reply must be buffered; the effects layer never blocks on it.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// InputEnabled is observed after the input source was enabled.
type InputEnabled struct {
	At time.Time
}

func (InputEnabled) eventMarker() {}

// InputDisabled is observed after the input source was disabled.
type InputDisabled struct {
	Reason string
	At     time.Time
}

func (InputDisabled) eventMarker() {}

// CommandFailed is emitted when executing a Command fails.
type CommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (CommandFailed) eventMarker() {}

// ============================================================================
// JSON Encoding/Decoding Support
// ============================================================================

// EventEnvelope wraps an event with a type discriminator for JSON marshaling
type EventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalEvent deserializes a JSON event envelope into a concrete Event.
// Only externally sourced events are accepted.
func UnmarshalEvent(data []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "stick_moved":
		var a StickMoved
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal StickMoved: %w", err)
		}
		return a, nil

	case "reset_gesture":
		var a ResetGesture
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &a); err != nil {
				return nil, fmt.Errorf("unmarshal ResetGesture: %w", err)
			}
		}
		if a.Origin == "" {
			a.Origin = "ipc"
		}
		return a, nil

	case "attach_input":
		return AttachInput{}, nil

	case "detach_input":
		var a DetachInput
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &a); err != nil {
				return nil, fmt.Errorf("unmarshal DetachInput: %w", err)
			}
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unknown event type: %q", env.Type)
	}
}

// MarshalEvent serializes an Event into a JSON envelope with type discriminator
func MarshalEvent(e Event) ([]byte, error) {
	var env EventEnvelope

	switch e := e.(type) {
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
		return nil, fmt.Errorf("unsupported event type: %T", e)
	}

	return json.Marshal(env)
}
