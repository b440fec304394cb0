package spin

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoSource is returned by Attach when no input source is supplied.
var ErrNoSource = errors.New("spin: no input source")

// Source is the input collaborator a Tracker is bound to. Enable is called on
// attach and Disable on detach.
type Source interface {
	Enable() error
	Disable() error
}

// Tracker owns one gesture state and its input source.
//
// A Tracker is not safe for concurrent use; it is meant to be driven by a
// single tick loop.
type Tracker struct {
	cfg      Config
	src      Source
	state    State
	attached bool
}

// NewTracker returns a detached tracker using cfg.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// Attach enables src and clears the attempt in progress. The rotation count
// survives attach and detach.
// Attaching an already attached tracker re-enables and resets it.
func (t *Tracker) Attach(src Source) error {
	if src == nil {
		return ErrNoSource
	}
	if err := src.Enable(); err != nil {
		return fmt.Errorf("enable input source: %w", err)
	}
	t.src = src
	t.attached = true
	t.state = t.state.Reset()
	return nil
}

// Detach disables the input source and discards the attempt in progress.
func (t *Tracker) Detach() error {
	if !t.attached {
		return nil
	}
	src := t.src
	t.src = nil
	t.attached = false
	t.state = t.state.Reset()
	if err := src.Disable(); err != nil {
		return fmt.Errorf("disable input source: %w", err)
	}
	return nil
}

// Attached reports whether the tracker is currently bound to a source.
func (t *Tracker) Attached() bool { return t.attached }

// State returns a copy of the current gesture state.
func (t *Tracker) State() State { return t.state }

// Config returns the tracker's thresholds.
func (t *Tracker) Config() Config { return t.cfg }

// Reset clears the attempt in progress without touching the rotation count.
func (t *Tracker) Reset() {
	if t.attached {
		t.state = t.state.Reset()
	}
}

// Tick feeds one sample. While detached it does nothing and returns a zero
// result.
func (t *Tracker) Tick(sample Sample, dt time.Duration) TickResult {
	if !t.attached {
		return TickResult{}
	}
	next, res := Step(t.state, sample, dt, t.cfg)
	t.state = next
	return res
}

// ElapsedDisplay shows the running attempt time.
type ElapsedDisplay interface {
	ShowElapsed(d time.Duration)
	ClearElapsed()
}

// CounterDisplay shows the number of completed rotations.
type CounterDisplay interface {
	ShowRotations(n int)
}

// Effect is fired once per completed rotation.
type Effect interface {
	Play()
}

// Sinks groups the output collaborators of a tracker. Nil members are skipped.
type Sinks struct {
	Elapsed ElapsedDisplay
	Counter CounterDisplay
	Effect  Effect
}

// Deliver routes one tick result to the sinks. The elapsed display is updated
// on every tick the timer runs, starting with the tick that starts it.
func (s Sinks) Deliver(res TickResult) {
	if (res.Timing || res.Started) && s.Elapsed != nil {
		s.Elapsed.ShowElapsed(res.Elapsed)
	}
	if res.Completed && s.Counter != nil {
		s.Counter.ShowRotations(res.Rotations)
	}
	if res.Reset() && s.Elapsed != nil {
		s.Elapsed.ClearElapsed()
	}
	if res.Completed && s.Effect != nil {
		s.Effect.Play()
	}
}
