package main

import (
	"errors"
	"math"
	"testing"
	"time"

	"stickspin/internal/spin"
)

const frame = 100 * time.Millisecond

type fakePad struct {
	present    bool
	enabled    bool
	sample     spin.Sample
	reset      bool
	enables    int
	disables   int
	disableErr error
}

func (f *fakePad) Enable() error {
	f.enables++
	if !f.present {
		return errNoGamepad
	}
	f.enabled = true
	return nil
}

func (f *fakePad) Disable() error {
	f.disables++
	f.enabled = false
	return f.disableErr
}

func (f *fakePad) Connected() bool     { return f.present && f.enabled }
func (f *fakePad) Sample() spin.Sample { return f.sample }
func (f *fakePad) Name() string        { return "fake" }

func (f *fakePad) ResetPressed() bool {
	r := f.reset
	f.reset = false
	return r
}

func TestStickSample_FlipsAndClamps(t *testing.T) {
	tests := []struct {
		ax, ay float64
		want   spin.Sample
	}{
		{0, -1, spin.Sample{X: 0, Y: 1}},
		{1, 0, spin.Sample{X: 1, Y: 0}},
		{2, 3, spin.Sample{X: 1, Y: -1}},
		{math.NaN(), -0.5, spin.Sample{X: 0, Y: 0.5}},
	}
	for _, tt := range tests {
		got := stickSample(tt.ax, tt.ay)
		if got != tt.want {
			t.Fatalf("stickSample(%v, %v): expected %+v, got %+v", tt.ax, tt.ay, tt.want, got)
		}
	}

	// Pushing the stick up on screen is slice 1 territory.
	if s := stickSample(0.5, -0.87).Slice(); s != spin.Slice1 {
		t.Fatalf("expected slice 1, got %v", s)
	}
}

func TestNewGamepadSource_RejectsBadFlags(t *testing.T) {
	if _, err := newGamepadSource("middle", 0); err == nil {
		t.Fatalf("expected error for unknown stick")
	}
	if _, err := newGamepadSource("left", -1); err == nil {
		t.Fatalf("expected error for negative index")
	}
}

func TestGame_WaitsForGamepadThenFails(t *testing.T) {
	pad := &fakePad{}
	g := newGame(spin.DefaultConfig(), pad, 3*frame)

	for i := 0; i < 2; i++ {
		if err := g.step(frame, false); err != nil {
			t.Fatalf("frame %d: unexpected error %v", i, err)
		}
	}
	err := g.step(frame, false)
	if !errors.Is(err, errNoGamepad) {
		t.Fatalf("expected errNoGamepad after grace period, got %v", err)
	}
}

func TestGame_AttachesLateGamepad(t *testing.T) {
	pad := &fakePad{}
	g := newGame(spin.DefaultConfig(), pad, time.Second)

	if err := g.step(frame, false); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	pad.present = true
	if err := g.step(frame, false); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if !g.tracker.Attached() {
		t.Fatalf("expected tracker to attach once the gamepad appears")
	}
	if pad.enables != 2 {
		t.Fatalf("expected 2 enable attempts, got %d", pad.enables)
	}
}

func TestGame_RotationUpdatesDisplay(t *testing.T) {
	pad := &fakePad{present: true}
	g := newGame(spin.DefaultConfig(), pad, time.Second)

	for _, deg := range []float64{60, 0, -60, -120, -165, 120} {
		pad.sample = spin.SampleAt(deg, 0.9)
		if err := g.step(frame, false); err != nil {
			t.Fatalf("unexpected error %v", err)
		}
	}

	if g.rotations != 1 {
		t.Fatalf("expected 1 rotation, got %d", g.rotations)
	}
	if g.timing {
		t.Fatalf("expected elapsed cleared after completion")
	}
	if g.flash != flashFrames {
		t.Fatalf("expected flash to start, got %d", g.flash)
	}
	if got := g.tracker.State().ExpectedSlice; got != spin.Slice1 {
		t.Fatalf("expected slice 1 next, got %v", got)
	}
}

func TestGame_ResetButtonClearsAttempt(t *testing.T) {
	pad := &fakePad{present: true}
	g := newGame(spin.DefaultConfig(), pad, time.Second)

	pad.sample = spin.SampleAt(60, 0.9)
	_ = g.step(frame, false)
	pad.sample = spin.SampleAt(0, 0.9)
	_ = g.step(frame, false)
	if !g.timing {
		t.Fatalf("expected timing after entering slice 1")
	}

	pad.sample = spin.Sample{}
	pad.reset = true
	if err := g.step(frame, false); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if g.timing {
		t.Fatalf("expected elapsed cleared by reset")
	}
	if got := g.tracker.State().ExpectedSlice; got != spin.Slice1 {
		t.Fatalf("expected slice 1 after reset, got %v", got)
	}
}

func TestGame_DisconnectStops(t *testing.T) {
	pad := &fakePad{present: true}
	g := newGame(spin.DefaultConfig(), pad, time.Second)
	_ = g.step(frame, false)

	pad.present = false
	err := g.step(frame, false)
	if !errors.Is(err, errNoGamepad) {
		t.Fatalf("expected errNoGamepad on disconnect, got %v", err)
	}
	if g.tracker.Attached() {
		t.Fatalf("expected tracker detached")
	}
}

func TestPolar_ScreenOrientation(t *testing.T) {
	x, y := polar(100, 100, 10, 90)
	if math.Abs(x-100) > 1e-9 || math.Abs(y-90) > 1e-9 {
		t.Fatalf("expected (100, 90), got (%v, %v)", x, y)
	}
	x, y = stickPoint(100, 100, 10, spin.Sample{X: 3, Y: 4})
	if math.Abs(x-106) > 1e-9 || math.Abs(y-92) > 1e-9 {
		t.Fatalf("expected (106, 92), got (%v, %v)", x, y)
	}
}

func TestGame_DisconnectReportsDisableError(t *testing.T) {
	release := errors.New("release failed")
	pad := &fakePad{present: true, disableErr: release}
	g := newGame(spin.DefaultConfig(), pad, time.Second)
	_ = g.step(frame, false)

	pad.present = false
	err := g.step(frame, false)
	if !errors.Is(err, errNoGamepad) {
		t.Fatalf("expected errNoGamepad, got %v", err)
	}
	if !errors.Is(err, release) {
		t.Fatalf("expected disable error joined, got %v", err)
	}
}
