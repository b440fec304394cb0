package main

import (
	"time"

	"stickspin/internal/spin"
)

// DaemonState is the top-level, daemon-owned state container.
//
// Only the daemon goroutine touches it. Other goroutines see it through
// StateSnapshot values and broadcasts.
type DaemonState struct {
	// Attached is true while the input source is enabled. Ticks are ignored
	// while detached.
	Attached bool

	// Gesture is the rotation state machine.
	Gesture spin.State

	// Stick is the latest sample; each Tick feeds it to the state machine.
	Stick spin.Sample

	Stats SessionStats

	// elapsedShown is set while an elapsed value has been broadcast for the
	// current attempt; elapsedShownCS is that value in elapsedBroadcastStep units.
	elapsedShown   bool
	elapsedShownCS int64
}

// SessionStats counts attempts since the daemon started. Nothing is persisted.
type SessionStats struct {
	Attempts     int
	Timeouts     int
	LastRotation time.Duration
	BestRotation time.Duration
}

// recordRotation updates the last and best rotation times.
func (s *SessionStats) recordRotation(d time.Duration) {
	s.LastRotation = d
	if s.BestRotation == 0 || d < s.BestRotation {
		s.BestRotation = d
	}
}

// StateSnapshot is a copy of the daemon state safe to hand to other goroutines.
type StateSnapshot struct {
	Attached           bool
	ExpectedSlice      spin.Slice
	TimerActive        bool
	Elapsed            time.Duration
	CompletedRotations int
	Stick              spin.Sample
	Stats              SessionStats
}

// Snapshot copies the externally visible state.
func (s *DaemonState) Snapshot() StateSnapshot {
	expected := s.Gesture.ExpectedSlice
	if !expected.Valid() {
		expected = spin.Slice1
	}
	return StateSnapshot{
		Attached:           s.Attached,
		ExpectedSlice:      expected,
		TimerActive:        s.Gesture.TimerActive,
		Elapsed:            s.Gesture.Elapsed,
		CompletedRotations: s.Gesture.CompletedRotations,
		Stick:              s.Stick,
		Stats:              s.Stats,
	}
}

// elapsedUnits rounds d to the broadcast resolution.
func elapsedUnits(d time.Duration) int64 {
	return int64((d + elapsedBroadcastStep/2) / elapsedBroadcastStep)
}
