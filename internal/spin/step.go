package spin

import (
	"fmt"
	"time"
)

// Tuning defaults.
const (
	// DefaultDeadZone is the magnitude at or below which a sample is not classified.
	DefaultDeadZone = 0.1

	// DefaultTimeout is how long an attempt may run before it is abandoned.
	DefaultTimeout = 5 * time.Second
)

// Config carries the tunable thresholds of the state machine.
type Config struct {
	DeadZone float64
	Timeout  time.Duration
}

// DefaultConfig returns the stock dead zone and timeout.
func DefaultConfig() Config {
	return Config{
		DeadZone: DefaultDeadZone,
		Timeout:  DefaultTimeout,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	if c.DeadZone < 0 || c.DeadZone >= 1 {
		return fmt.Errorf("dead zone must be in [0, 1), got %v", c.DeadZone)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	return nil
}

// State is the gesture state of one tracker.
//
// The zero value is the idle state: an ExpectedSlice of SliceNone is read as
// Slice1 by Step.
type State struct {
	ExpectedSlice      Slice         `json:"expected_slice"`
	Elapsed            time.Duration `json:"elapsed"`
	TimerActive        bool          `json:"timer_active"`
	CompletedRotations int           `json:"completed_rotations"`
}

// Idle returns a fresh idle state.
func Idle() State {
	return State{ExpectedSlice: Slice1}
}

// Reset returns s with the attempt cleared. CompletedRotations is kept.
func (s State) Reset() State {
	s.ExpectedSlice = Slice1
	s.TimerActive = false
	s.Elapsed = 0
	return s
}

// IsIdle reports whether no attempt is in progress.
func (s State) IsIdle() bool {
	return !s.TimerActive && (s.ExpectedSlice == Slice1 || s.ExpectedSlice == SliceNone)
}

// TickResult describes what one Step did.
type TickResult struct {
	// Slice is the classification of this tick's sample, or SliceNone when the
	// sample was inside the dead zone, unclassifiable, or not examined.
	Slice Slice

	// Advanced is the slice ticked off this tick, if any.
	Advanced Slice

	// Timing is true when the timer was running at the start of the tick and
	// Elapsed was accumulated.
	Timing bool

	// Elapsed is the attempt's elapsed time after accumulation. On a completed
	// or timed-out tick it is the value reached before the reset.
	Elapsed time.Duration

	Started   bool
	Completed bool
	TimedOut  bool

	// Rotations is the completed-rotation count after this tick.
	Rotations int

	// State is the gesture state after this tick.
	State State
}

// Reset reports whether the attempt was cleared this tick.
func (r TickResult) Reset() bool {
	return r.Completed || r.TimedOut
}

// Step advances the state machine by one tick with the latest sample and the
// time elapsed since the previous tick.
//
// Step is pure: it never mutates anything besides the returned state.
func Step(s State, sample Sample, dt time.Duration, cfg Config) (State, TickResult) {
	if !s.ExpectedSlice.Valid() {
		s.ExpectedSlice = Slice1
	}
	if dt < 0 {
		dt = 0
	}

	var res TickResult

	if s.TimerActive {
		s.Elapsed += dt
		res.Timing = true
		res.Elapsed = s.Elapsed

		if s.Elapsed >= cfg.Timeout {
			s = s.Reset()
			res.TimedOut = true
			return s, res.finish(s)
		}
	}

	if sample.Magnitude() <= cfg.DeadZone {
		return s, res.finish(s)
	}

	current := sample.Slice()
	res.Slice = current

	if !s.TimerActive && current == Slice1 {
		s.TimerActive = true
		s.Elapsed = 0
		res.Started = true
		res.Elapsed = 0
	}

	if current.Valid() && current == s.ExpectedSlice {
		res.Advanced = current
		s.ExpectedSlice++

		if s.ExpectedSlice > Slice6 {
			res.Completed = true
			res.Elapsed = s.Elapsed
			s.CompletedRotations++
			s = s.Reset()
		}
	}

	return s, res.finish(s)
}

func (r TickResult) finish(s State) TickResult {
	r.Rotations = s.CompletedRotations
	r.State = s
	return r
}

// FormatElapsed renders d as seconds with two decimals, e.g. "1.23s".
func FormatElapsed(d time.Duration) string {
	return fmt.Sprintf("%.2fs", d.Seconds())
}
