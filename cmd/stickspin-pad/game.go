package main

import (
	"errors"
	"fmt"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"stickspin/internal/spin"
)

const (
	windowWidth  = 480
	windowHeight = 520

	wheelRadius = 180
	stickRadius = 10

	// flashFrames is how long the wheel stays lit after a rotation.
	flashFrames = 20
)

var (
	colorRim      = color.RGBA{R: 120, G: 120, B: 140, A: 255}
	colorSpoke    = color.RGBA{R: 70, G: 70, B: 90, A: 255}
	colorExpected = color.RGBA{R: 90, G: 200, B: 120, A: 255}
	colorStick    = color.RGBA{R: 230, G: 200, B: 80, A: 255}
	colorFlash    = color.RGBA{R: 250, G: 250, B: 250, A: 255}
	colorDeadZone = color.RGBA{R: 60, G: 40, B: 40, A: 255}
)

// padInput is the gamepad collaborator of the game.
type padInput interface {
	spin.Source
	Connected() bool
	Sample() spin.Sample
	ResetPressed() bool
	Name() string
}

// game drives a spin.Tracker from ebiten's update loop and draws the wheel.
type game struct {
	tracker *spin.Tracker
	input   padInput
	grace   time.Duration
	waited  time.Duration

	stick     spin.Sample
	elapsed   time.Duration
	timing    bool
	rotations int
	flash     int
}

func newGame(cfg spin.Config, input padInput, grace time.Duration) *game {
	return &game{
		tracker: spin.NewTracker(cfg),
		input:   input,
		grace:   grace,
	}
}

func (g *game) ShowElapsed(d time.Duration) {
	g.elapsed = d
	g.timing = true
}

func (g *game) ClearElapsed() {
	g.elapsed = 0
	g.timing = false
}

func (g *game) ShowRotations(n int) { g.rotations = n }

func (g *game) Play() { g.flash = flashFrames }

func (g *game) Update() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) || inpututil.IsKeyJustPressed(ebiten.KeyQ) {
		return ebiten.Termination
	}
	reset := inpututil.IsKeyJustPressed(ebiten.KeyR)
	return g.step(time.Second/time.Duration(ebiten.TPS()), reset)
}

// step advances one frame of dt. reset requests a gesture reset.
func (g *game) step(dt time.Duration, reset bool) error {
	if g.flash > 0 {
		g.flash--
	}

	if !g.tracker.Attached() {
		if err := g.tracker.Attach(g.input); err != nil {
			g.waited += dt
			if g.waited >= g.grace {
				return fmt.Errorf("waited %s for a gamepad: %w", g.grace, err)
			}
			return nil
		}
	}

	if !g.input.Connected() {
		lost := fmt.Errorf("gamepad disconnected: %w", errNoGamepad)
		return errors.Join(lost, g.tracker.Detach())
	}

	if reset || g.input.ResetPressed() {
		g.tracker.Reset()
		g.ClearElapsed()
	}

	g.stick = g.input.Sample()
	res := g.tracker.Tick(g.stick, dt)
	spin.Sinks{Elapsed: g, Counter: g, Effect: g}.Deliver(res)
	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	cx, cy := float64(windowWidth)/2, float64(windowHeight)/2+20

	if !g.tracker.Attached() {
		ebitenutil.DebugPrintAt(screen, "waiting for a gamepad...", 18, 14)
		return
	}

	rim := colorRim
	if g.flash > 0 {
		rim = colorFlash
	}
	vector.StrokeCircle(screen, float32(cx), float32(cy), wheelRadius, 3, rim, true)

	dz := g.tracker.Config().DeadZone * wheelRadius
	if dz > 0 {
		vector.StrokeCircle(screen, float32(cx), float32(cy), float32(dz), 1, colorDeadZone, true)
	}

	for _, deg := range spokeAngles {
		x, y := polar(cx, cy, wheelRadius, deg)
		vector.StrokeLine(screen, float32(cx), float32(cy), float32(x), float32(y), 1, colorSpoke, true)
	}

	for s, deg := range sliceMid {
		x, y := polar(cx, cy, wheelRadius+14, deg)
		ebitenutil.DebugPrintAt(screen, s.String(), int(x)-3, int(y)-8)
	}

	expected := g.tracker.State().ExpectedSlice
	if deg, ok := sliceMid[expected]; ok {
		x, y := polar(cx, cy, wheelRadius-8, deg)
		vector.StrokeLine(screen, float32(cx), float32(cy), float32(x), float32(y), 4, colorExpected, true)
	}

	sx, sy := stickPoint(cx, cy, wheelRadius, g.stick)
	vector.DrawFilledCircle(screen, float32(sx), float32(sy), stickRadius, colorStick, true)

	elapsed := "--"
	if g.timing {
		elapsed = spin.FormatElapsed(g.elapsed)
	}
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("pad: %s", g.input.Name()), 18, 14)
	ebitenutil.DebugPrintAt(screen, fmt.Sprintf("elapsed: %s   rotations: %d   next slice: %s", elapsed, g.rotations, expected), 18, 34)
	ebitenutil.DebugPrintAt(screen, "R / select: reset   Esc/Q: quit", 18, 54)
}

func (g *game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return windowWidth, windowHeight
}
