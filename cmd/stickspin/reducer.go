package main

import (
	"time"

	"stickspin/internal/spin"
)

// The reducer computes the next DaemonState plus the commands and broadcasts
// an event implies. It performs no I/O; the daemon loop executes commands and
// feeds observations back as events.

// ReduceResult is the output of Reduce.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce is the pure reducer:
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must not mutate anything outside the returned state
func Reduce(s *DaemonState, e Event, cfg spin.Config) ReduceResult {
	if s == nil {
		s = &DaemonState{}
	}

	var rr ReduceResult
	at := time.Time{}
	if te, ok := e.(TimedEvent); ok {
		e = te.Event
		at = te.At
	}

	switch ev := e.(type) {
	case Tick:
		if !s.Attached {
			break
		}
		reduceTick(s, ev, cfg, &rr)

	case StickMoved:
		if !s.Attached {
			break
		}
		s.Stick = spin.Sample{X: ev.X, Y: ev.Y}

	case ResetGesture:
		if !s.Attached {
			break
		}
		s.Gesture = s.Gesture.Reset()
		clearElapsed(s, at, &rr)

	case AttachInput:
		rr.Commands = append(rr.Commands, CmdEnableInput{})

	case DetachInput:
		if !s.Attached {
			break
		}
		reason := ev.Reason
		if reason == "" {
			reason = "requested"
		}
		rr.Commands = append(rr.Commands, CmdDisableInput{Reason: reason})

	case InputLost:
		wasAttached := s.Attached
		detach(s, ev.Reason, at, &rr)
		if !wasAttached {
			// detach() only broadcasts on a transition.
			rr.Broadcasts = append(rr.Broadcasts, BroadcastInputChanged{Attached: false, Reason: ev.Reason, At: at})
		}
		rr.Commands = append(rr.Commands, CmdStopDaemon{Reason: ev.Reason})

	case InputEnabled:
		clearElapsed(s, ev.At, &rr)
		s.Attached = true
		s.Gesture = s.Gesture.Reset()
		s.Stick = spin.Sample{}
		rr.Broadcasts = append(rr.Broadcasts, BroadcastInputChanged{Attached: true, At: ev.At})

	case InputDisabled:
		detach(s, ev.Reason, ev.At, &rr)

	case RequestStateSnapshot:
		rr.Commands = append(rr.Commands, CmdPublishStateSnapshot{
			Reply:    ev.Reply,
			Snapshot: s.Snapshot(),
		})

	case CommandFailed:
		// Keep state as-is; the failure is already logged by the effects layer.

	default:
		// Unknown event type: no-op.
	}

	rr.State = s
	return rr
}

func reduceTick(s *DaemonState, ev Tick, cfg spin.Config, rr *ReduceResult) {
	next, res := spin.Step(s.Gesture, s.Stick, ev.Dt, cfg)
	s.Gesture = next

	if res.Started {
		s.Stats.Attempts++
	}

	if res.Timing || res.Started {
		u := elapsedUnits(res.Elapsed)
		if !s.elapsedShown || u != s.elapsedShownCS {
			s.elapsedShown = true
			s.elapsedShownCS = u
			rr.Broadcasts = append(rr.Broadcasts, BroadcastElapsedChanged{
				Elapsed: time.Duration(u) * elapsedBroadcastStep,
				At:      ev.Now,
			})
		}
	}

	if res.Advanced.Valid() {
		rr.Broadcasts = append(rr.Broadcasts, BroadcastSliceTicked{
			Slice:    res.Advanced,
			Expected: next.ExpectedSlice,
			At:       ev.Now,
		})
	}

	switch {
	case res.Completed:
		s.Stats.recordRotation(res.Elapsed)
		rr.Broadcasts = append(rr.Broadcasts, BroadcastRotationCompleted{
			Rotations: res.Rotations,
			Duration:  res.Elapsed,
			At:        ev.Now,
		})
		rr.Commands = append(rr.Commands, CmdPlayChime{Rotations: res.Rotations})
		clearElapsed(s, ev.Now, rr)

	case res.TimedOut:
		s.Stats.Timeouts++
		rr.Broadcasts = append(rr.Broadcasts, BroadcastAttemptTimedOut{
			Elapsed: res.Elapsed,
			At:      ev.Now,
		})
		clearElapsed(s, ev.Now, rr)
	}
}

// clearElapsed emits elapsed_reset if an elapsed value is currently shown.
func clearElapsed(s *DaemonState, at time.Time, rr *ReduceResult) {
	if !s.elapsedShown {
		return
	}
	s.elapsedShown = false
	s.elapsedShownCS = 0
	rr.Broadcasts = append(rr.Broadcasts, BroadcastElapsedReset{At: at})
}

// detach discards the attempt in progress. It broadcasts only on a transition.
func detach(s *DaemonState, reason string, at time.Time, rr *ReduceResult) {
	if !s.Attached {
		return
	}
	clearElapsed(s, at, rr)
	s.Attached = false
	s.Gesture = s.Gesture.Reset()
	s.Stick = spin.Sample{}
	rr.Broadcasts = append(rr.Broadcasts, BroadcastInputChanged{Attached: false, Reason: reason, At: at})
}
