package main

import (
	"testing"
	"time"

	"stickspin/internal/spin"
)

const testDt = 100 * time.Millisecond

var sliceCenters = map[spin.Slice]float64{
	spin.Slice1: 60,
	spin.Slice2: 0,
	spin.Slice3: -60,
	spin.Slice4: -120,
	spin.Slice5: -165,
	spin.Slice6: 120,
}

func attachedState() *DaemonState {
	return &DaemonState{Attached: true, Gesture: spin.Idle()}
}

// spinThrough moves the stick into each slice and ticks once per slice,
// collecting every command and broadcast.
func spinThrough(t *testing.T, s *DaemonState, slices ...spin.Slice) ([]Command, []StateBroadcast) {
	t.Helper()
	cfg := spin.DefaultConfig()
	now := time.Now()

	var cmds []Command
	var bcasts []StateBroadcast
	for _, sl := range slices {
		p := spin.SampleAt(sliceCenters[sl], 0.9)
		rr := Reduce(s, StickMoved{X: p.X, Y: p.Y}, cfg)
		cmds = append(cmds, rr.Commands...)
		bcasts = append(bcasts, rr.Broadcasts...)

		now = now.Add(testDt)
		rr = Reduce(rr.State, Tick{Now: now, Dt: testDt}, cfg)
		s = rr.State
		cmds = append(cmds, rr.Commands...)
		bcasts = append(bcasts, rr.Broadcasts...)
	}
	return cmds, bcasts
}

func countChimes(cmds []Command) int {
	n := 0
	for _, c := range cmds {
		if _, ok := c.(CmdPlayChime); ok {
			n++
		}
	}
	return n
}

func TestReducer_OneChimePerRotation(t *testing.T) {
	s := attachedState()

	cmds, bcasts := spinThrough(t, s,
		spin.Slice1, spin.Slice2, spin.Slice3, spin.Slice4, spin.Slice5, spin.Slice6,
		spin.Slice1, spin.Slice2, spin.Slice3, spin.Slice4, spin.Slice5, spin.Slice6,
	)

	if got := countChimes(cmds); got != 2 {
		t.Fatalf("expected 2 CmdPlayChime, got %d", got)
	}
	if s.Gesture.CompletedRotations != 2 {
		t.Fatalf("expected 2 rotations, got %d", s.Gesture.CompletedRotations)
	}

	var completions []BroadcastRotationCompleted
	for _, b := range bcasts {
		if rc, ok := b.(BroadcastRotationCompleted); ok {
			completions = append(completions, rc)
		}
	}
	if len(completions) != 2 {
		t.Fatalf("expected 2 rotation_completed broadcasts, got %d", len(completions))
	}
	if completions[1].Rotations != 2 {
		t.Fatalf("expected second completion to report 2 rotations, got %d", completions[1].Rotations)
	}
	if completions[0].Duration != 5*testDt {
		t.Fatalf("expected rotation duration %v, got %v", 5*testDt, completions[0].Duration)
	}
}

func TestReducer_CompletionOrderAndStats(t *testing.T) {
	s := attachedState()

	_, bcasts := spinThrough(t, s, spin.Slice1, spin.Slice2, spin.Slice3, spin.Slice4, spin.Slice5, spin.Slice6)

	// The completing tick reports the elapsed value, the tick, the completion
	// and then the clear.
	if len(bcasts) < 4 {
		t.Fatalf("expected at least 4 broadcasts, got %d", len(bcasts))
	}
	tail := bcasts[len(bcasts)-4:]
	if _, ok := tail[0].(BroadcastElapsedChanged); !ok {
		t.Fatalf("expected elapsed_changed, got %T", tail[0])
	}
	if st, ok := tail[1].(BroadcastSliceTicked); !ok || st.Slice != spin.Slice6 || st.Expected != spin.Slice1 {
		t.Fatalf("expected slice_ticked 6 -> 1, got %#v", tail[1])
	}
	if _, ok := tail[2].(BroadcastRotationCompleted); !ok {
		t.Fatalf("expected rotation_completed, got %T", tail[2])
	}
	if _, ok := tail[3].(BroadcastElapsedReset); !ok {
		t.Fatalf("expected elapsed_reset, got %T", tail[3])
	}

	if s.Stats.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", s.Stats.Attempts)
	}
	if s.Stats.LastRotation != 5*testDt || s.Stats.BestRotation != 5*testDt {
		t.Fatalf("expected last/best %v, got %v/%v", 5*testDt, s.Stats.LastRotation, s.Stats.BestRotation)
	}
	if !s.Gesture.IsIdle() {
		t.Fatalf("expected idle gesture after completion, got %+v", s.Gesture)
	}
}

func TestReducer_ElapsedBroadcastOnlyOnRoundedChange(t *testing.T) {
	s := attachedState()
	cfg := spin.DefaultConfig()

	// Start the timer in slice 1, then hold the stick there.
	p := spin.SampleAt(sliceCenters[spin.Slice1], 0.9)
	s = Reduce(s, StickMoved{X: p.X, Y: p.Y}, cfg).State

	var elapsed []time.Duration
	for i := 0; i < 21; i++ {
		rr := Reduce(s, Tick{Now: time.Now(), Dt: time.Millisecond}, cfg)
		s = rr.State
		for _, b := range rr.Broadcasts {
			if ec, ok := b.(BroadcastElapsedChanged); ok {
				elapsed = append(elapsed, ec.Elapsed)
			}
		}
		if i == 0 && !s.Gesture.TimerActive {
			t.Fatalf("expected timer to start")
		}
	}

	// The starting tick shows 0; 1..4ms rounds to 0, 5..14ms to 10ms, 15..20ms to 20ms.
	want := []time.Duration{0, 10 * time.Millisecond, 20 * time.Millisecond}
	if len(elapsed) != len(want) {
		t.Fatalf("expected %d elapsed broadcasts, got %d (%v)", len(want), len(elapsed), elapsed)
	}
	for i := range want {
		if elapsed[i] != want[i] {
			t.Fatalf("expected elapsed[%d]=%v, got %v", i, want[i], elapsed[i])
		}
	}
}

func TestReducer_TimeoutBroadcastsAndCounts(t *testing.T) {
	s := attachedState()
	cfg := spin.DefaultConfig()

	_, _ = spinThrough(t, s, spin.Slice1, spin.Slice2, spin.Slice3)

	var timedOut, resets int
	for i := 0; i < 60 && s.Gesture.TimerActive; i++ {
		rr := Reduce(s, Tick{Now: time.Now(), Dt: testDt}, cfg)
		s = rr.State
		for _, b := range rr.Broadcasts {
			switch b.(type) {
			case BroadcastAttemptTimedOut:
				timedOut++
			case BroadcastElapsedReset:
				resets++
			}
		}
		if len(rr.Commands) != 0 {
			t.Fatalf("expected no commands on timeout path, got %v", rr.Commands)
		}
	}

	if timedOut != 1 || resets != 1 {
		t.Fatalf("expected 1 timeout and 1 reset, got %d and %d", timedOut, resets)
	}
	if s.Stats.Timeouts != 1 {
		t.Fatalf("expected 1 recorded timeout, got %d", s.Stats.Timeouts)
	}
	if s.Gesture.CompletedRotations != 0 {
		t.Fatalf("expected no rotations credited, got %d", s.Gesture.CompletedRotations)
	}
}

func TestReducer_DetachedIgnoresTicks(t *testing.T) {
	s := &DaemonState{Gesture: spin.Idle()}
	cfg := spin.DefaultConfig()

	p := spin.SampleAt(sliceCenters[spin.Slice1], 0.9)
	rr := Reduce(s, StickMoved{X: p.X, Y: p.Y}, cfg)
	rr = Reduce(rr.State, Tick{Now: time.Now(), Dt: testDt}, cfg)

	if len(rr.Broadcasts) != 0 || len(rr.Commands) != 0 {
		t.Fatalf("expected detached tick to be a no-op, got %v / %v", rr.Broadcasts, rr.Commands)
	}
	if rr.State.Gesture.TimerActive {
		t.Fatalf("expected timer to stay off while detached")
	}
	if rr.State.Stick != (spin.Sample{}) {
		t.Fatalf("expected stick sample to be ignored while detached, got %+v", rr.State.Stick)
	}
}

func TestReducer_ResetClearsShownElapsed(t *testing.T) {
	s := attachedState()
	_, _ = spinThrough(t, s, spin.Slice1, spin.Slice2)

	rr := Reduce(s, TimedEvent{Event: ResetGesture{Origin: "ipc"}, At: time.Now()}, spin.DefaultConfig())

	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(rr.Broadcasts))
	}
	if _, ok := rr.Broadcasts[0].(BroadcastElapsedReset); !ok {
		t.Fatalf("expected elapsed_reset, got %T", rr.Broadcasts[0])
	}
	if !rr.State.Gesture.IsIdle() {
		t.Fatalf("expected idle gesture after reset, got %+v", rr.State.Gesture)
	}

	// A second reset has nothing to clear.
	rr = Reduce(rr.State, ResetGesture{}, spin.DefaultConfig())
	if len(rr.Broadcasts) != 0 {
		t.Fatalf("expected no broadcasts on idle reset, got %v", rr.Broadcasts)
	}
}

func TestReducer_AttachDetachEmitCommands(t *testing.T) {
	s := attachedState()
	cfg := spin.DefaultConfig()

	rr := Reduce(s, DetachInput{}, cfg)
	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(rr.Commands))
	}
	cmd, ok := rr.Commands[0].(CmdDisableInput)
	if !ok || cmd.Reason != "requested" {
		t.Fatalf("expected CmdDisableInput(requested), got %#v", rr.Commands[0])
	}

	rr = Reduce(rr.State, InputDisabled{Reason: cmd.Reason, At: time.Now()}, cfg)
	if rr.State.Attached {
		t.Fatalf("expected detached state")
	}
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected input_changed broadcast, got %v", rr.Broadcasts)
	}

	// Detaching twice is a no-op.
	if rr2 := Reduce(rr.State, DetachInput{}, cfg); len(rr2.Commands) != 0 {
		t.Fatalf("expected no command when already detached, got %v", rr2.Commands)
	}

	rr = Reduce(rr.State, AttachInput{}, cfg)
	if _, ok := rr.Commands[0].(CmdEnableInput); !ok {
		t.Fatalf("expected CmdEnableInput, got %T", rr.Commands[0])
	}
	rr = Reduce(rr.State, InputEnabled{At: time.Now()}, cfg)
	if !rr.State.Attached || !rr.State.Gesture.IsIdle() {
		t.Fatalf("expected attached idle state, got %+v", rr.State)
	}
}

func TestReducer_AttachKeepsRotationCount(t *testing.T) {
	s := attachedState()
	_, _ = spinThrough(t, s, spin.Slice1, spin.Slice2, spin.Slice3, spin.Slice4, spin.Slice5, spin.Slice6, spin.Slice1, spin.Slice2)

	rr := Reduce(s, InputEnabled{At: time.Now()}, spin.DefaultConfig())
	if rr.State.Gesture.CompletedRotations != 1 {
		t.Fatalf("expected rotation count kept on attach, got %d", rr.State.Gesture.CompletedRotations)
	}
	if !rr.State.Gesture.IsIdle() {
		t.Fatalf("expected attempt cleared on attach, got %+v", rr.State.Gesture)
	}

	rr = Reduce(rr.State, InputDisabled{Reason: "requested", At: time.Now()}, spin.DefaultConfig())
	rr = Reduce(rr.State, InputEnabled{At: time.Now()}, spin.DefaultConfig())
	if rr.State.Gesture.CompletedRotations != 1 {
		t.Fatalf("expected rotation count kept across detach, got %d", rr.State.Gesture.CompletedRotations)
	}
	if rr.State.Stats.Attempts != 2 {
		t.Fatalf("expected session stats to survive attach, got %+v", rr.State.Stats)
	}
}

func TestReducer_InputLostStopsDaemon(t *testing.T) {
	s := attachedState()

	rr := Reduce(s, InputLost{Reason: "device error/hangup: /dev/input/event0"}, spin.DefaultConfig())

	if rr.State.Attached {
		t.Fatalf("expected detached state after input loss")
	}
	if len(rr.Broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(rr.Broadcasts))
	}
	if ic, ok := rr.Broadcasts[0].(BroadcastInputChanged); !ok || ic.Attached {
		t.Fatalf("expected input_changed(false), got %#v", rr.Broadcasts[0])
	}
	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(rr.Commands))
	}
	if _, ok := rr.Commands[0].(CmdStopDaemon); !ok {
		t.Fatalf("expected CmdStopDaemon, got %T", rr.Commands[0])
	}
}

func TestReducer_SnapshotRequest(t *testing.T) {
	s := attachedState()
	reply := make(chan StateSnapshot, 1)

	rr := Reduce(s, RequestStateSnapshot{Reply: reply}, spin.DefaultConfig())

	if len(rr.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(rr.Commands))
	}
	cmd, ok := rr.Commands[0].(CmdPublishStateSnapshot)
	if !ok {
		t.Fatalf("expected CmdPublishStateSnapshot, got %T", rr.Commands[0])
	}
	if !cmd.Snapshot.Attached || cmd.Snapshot.ExpectedSlice != spin.Slice1 {
		t.Fatalf("unexpected snapshot %+v", cmd.Snapshot)
	}
}
