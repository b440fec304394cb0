package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/ncruces/zenity"

	"stickspin/internal/spin"
)

func main() {
	var (
		index    = flag.Int("gamepad", 0, "Index of the connected gamepad to read")
		stick    = flag.String("stick", "right", "Stick to track: left or right")
		deadZone = flag.Float64("dead-zone", spin.DefaultDeadZone, "Stick magnitude at or below which input is ignored")
		timeout  = flag.Duration("timeout", spin.DefaultTimeout, "Attempt timeout")
		grace    = flag.Duration("grace", 3*time.Second, "How long to wait for a gamepad at startup")
	)
	flag.Parse()

	cfg := spin.Config{DeadZone: *deadZone, Timeout: *timeout}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	input, err := newGamepadSource(*stick, *index)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	ebiten.SetWindowSize(windowWidth, windowHeight)
	ebiten.SetWindowTitle("stickspin - rotate the stick counter-clockwise")

	g := newGame(cfg, input, *grace)
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if derr := zenity.Error(err.Error(), zenity.Title("stickspin-pad"), zenity.ErrorIcon); derr != nil {
			fmt.Fprintf(os.Stderr, "error dialog: %v\n", derr)
		}
		os.Exit(1)
	}
}
