package main

import (
	"log/slog"
	"time"

	"stickspin/internal/spin"
)

// StateBroadcast is a reducer-emitted, externally consumable state change.
// They fan out to the WebSocket broadcaster and the terminal display.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastElapsedChanged is emitted when the rounded elapsed time changes.
type BroadcastElapsedChanged struct {
	Elapsed time.Duration
	At      time.Time
}

func (BroadcastElapsedChanged) broadcastMarker() {}

// BroadcastElapsedReset is emitted whenever a shown elapsed time is cleared.
type BroadcastElapsedReset struct {
	At time.Time
}

func (BroadcastElapsedReset) broadcastMarker() {}

// BroadcastSliceTicked is emitted when a slice is ticked off.
type BroadcastSliceTicked struct {
	Slice    spin.Slice
	Expected spin.Slice
	At       time.Time
}

func (BroadcastSliceTicked) broadcastMarker() {}

// BroadcastRotationCompleted is emitted once per completed rotation.
type BroadcastRotationCompleted struct {
	Rotations int
	Duration  time.Duration
	At        time.Time
}

func (BroadcastRotationCompleted) broadcastMarker() {}

// BroadcastAttemptTimedOut is emitted when an attempt runs out of time.
type BroadcastAttemptTimedOut struct {
	Elapsed time.Duration
	At      time.Time
}

func (BroadcastAttemptTimedOut) broadcastMarker() {}

// BroadcastInputChanged is emitted on attach and detach.
type BroadcastInputChanged struct {
	Attached bool
	Reason   string
	At       time.Time
}

func (BroadcastInputChanged) broadcastMarker() {}

// broadcastFanout copies every broadcast to each output without blocking.
// Outputs that are full drop the broadcast.
type broadcastFanout struct {
	outputs []chan<- StateBroadcast
	logger  *slog.Logger
}

func newBroadcastFanout(logger *slog.Logger, outputs ...chan<- StateBroadcast) *broadcastFanout {
	return &broadcastFanout{outputs: outputs, logger: logger}
}

func (f *broadcastFanout) Publish(b StateBroadcast) {
	for _, out := range f.outputs {
		select {
		case out <- b:
		default:
			f.logger.Warn("broadcast output full, dropping", "type", broadcastName(b))
		}
	}
}

// logBroadcast writes the daemon's activity log for one broadcast.
func logBroadcast(logger *slog.Logger, b StateBroadcast) {
	switch ev := b.(type) {
	case BroadcastSliceTicked:
		logger.Debug("ticked off slice", "slice", ev.Slice, "expected", ev.Expected)
	case BroadcastRotationCompleted:
		logger.Info("rotation done", "rotations", ev.Rotations, "duration", spin.FormatElapsed(ev.Duration))
	case BroadcastAttemptTimedOut:
		logger.Debug("attempt timed out", "elapsed", spin.FormatElapsed(ev.Elapsed))
	case BroadcastInputChanged:
		if ev.Attached {
			logger.Info("input attached")
		} else {
			logger.Info("input detached", "reason", ev.Reason)
		}
	}
}

func broadcastName(b StateBroadcast) string {
	switch b.(type) {
	case BroadcastElapsedChanged:
		return "elapsed_changed"
	case BroadcastElapsedReset:
		return "elapsed_reset"
	case BroadcastSliceTicked:
		return "slice_ticked"
	case BroadcastRotationCompleted:
		return "rotation_completed"
	case BroadcastAttemptTimedOut:
		return "attempt_timed_out"
	case BroadcastInputChanged:
		return "input_changed"
	default:
		return "unknown"
	}
}
