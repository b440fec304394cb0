package main

import (
	"errors"
	"fmt"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"stickspin/internal/spin"
)

var errNoGamepad = errors.New("no gamepad connected")

// Raw axis indices used when the pad has no standard layout mapping.
var rawAxes = map[string][2]int{
	"left":  {0, 1},
	"right": {2, 3},
}

// stickSample converts ebiten axis values (+y pointing down) into a sample
// with +y pointing up. Values are clamped to [-1, 1].
func stickSample(ax, ay float64) spin.Sample {
	return spin.Sample{X: clampUnit(ax), Y: -clampUnit(ay)}
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	case v < -1:
		return -1
	}
	return v
}

// gamepadSource reads one stick of one ebiten gamepad. It satisfies
// spin.Source; Enable fails until a gamepad is connected.
type gamepadSource struct {
	stick  string
	index  int
	id     ebiten.GamepadID
	active bool
}

func newGamepadSource(stick string, index int) (*gamepadSource, error) {
	if _, ok := rawAxes[stick]; !ok {
		return nil, fmt.Errorf("unknown stick %q (want left or right)", stick)
	}
	if index < 0 {
		return nil, fmt.Errorf("gamepad index must be >= 0, got %d", index)
	}
	return &gamepadSource{stick: stick, index: index}, nil
}

// Enable binds the source to the index-th connected gamepad.
func (g *gamepadSource) Enable() error {
	ids := ebiten.AppendGamepadIDs(nil)
	if g.index >= len(ids) {
		return fmt.Errorf("gamepad %d: %w", g.index, errNoGamepad)
	}
	g.id = ids[g.index]
	g.active = true
	return nil
}

func (g *gamepadSource) Disable() error {
	g.active = false
	return nil
}

// Connected reports whether the bound gamepad is still present.
func (g *gamepadSource) Connected() bool {
	if !g.active {
		return false
	}
	for _, id := range ebiten.AppendGamepadIDs(nil) {
		if id == g.id {
			return true
		}
	}
	return false
}

// Name is the driver-reported gamepad name.
func (g *gamepadSource) Name() string {
	if !g.active {
		return ""
	}
	return ebiten.GamepadName(g.id)
}

// Sample reads the configured stick.
func (g *gamepadSource) Sample() spin.Sample {
	if !g.active {
		return spin.Sample{}
	}
	if ebiten.IsStandardGamepadLayoutAvailable(g.id) {
		h, v := ebiten.StandardGamepadAxisLeftStickHorizontal, ebiten.StandardGamepadAxisLeftStickVertical
		if g.stick == "right" {
			h, v = ebiten.StandardGamepadAxisRightStickHorizontal, ebiten.StandardGamepadAxisRightStickVertical
		}
		return stickSample(ebiten.StandardGamepadAxisValue(g.id, h), ebiten.StandardGamepadAxisValue(g.id, v))
	}

	axes := rawAxes[g.stick]
	if ebiten.GamepadAxisCount(g.id) <= axes[1] {
		return spin.Sample{}
	}
	return stickSample(ebiten.GamepadAxisValue(g.id, axes[0]), ebiten.GamepadAxisValue(g.id, axes[1]))
}

// ResetPressed reports a press of the select/back button this frame.
func (g *gamepadSource) ResetPressed() bool {
	if !g.active {
		return false
	}
	if ebiten.IsStandardGamepadLayoutAvailable(g.id) {
		return inpututil.IsStandardGamepadButtonJustPressed(g.id, ebiten.StandardGamepadButtonCenterLeft)
	}
	return false
}
