package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"stickspin/internal/spin"
)

// errTerminalQuit is returned by terminalDisplay.Run when the user quits.
var errTerminalQuit = errors.New("terminal display closed by user")

// terminalDisplay renders the elapsed time and rotation counter with tcell.
// It implements spin.ElapsedDisplay and spin.CounterDisplay.
type terminalDisplay struct {
	screen tcell.Screen

	mu        sync.Mutex
	elapsed   time.Duration
	timing    bool
	rotations int
	expected  spin.Slice
	attached  bool
}

// newTerminalDisplay initialises screen and takes ownership of it.
func newTerminalDisplay(screen tcell.Screen) (*terminalDisplay, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("terminal init: %w", err)
	}
	screen.HideCursor()
	d := &terminalDisplay{
		screen:   screen,
		expected: spin.Slice1,
		attached: true,
	}
	d.draw()
	return d, nil
}

// Close restores the terminal.
func (d *terminalDisplay) Close() {
	d.screen.Fini()
}

func (d *terminalDisplay) ShowElapsed(e time.Duration) {
	d.mu.Lock()
	d.elapsed, d.timing = e, true
	d.mu.Unlock()
	d.draw()
}

func (d *terminalDisplay) ClearElapsed() {
	d.mu.Lock()
	d.elapsed, d.timing = 0, false
	d.mu.Unlock()
	d.draw()
}

func (d *terminalDisplay) ShowRotations(n int) {
	d.mu.Lock()
	d.rotations = n
	d.mu.Unlock()
	d.draw()
}

// apply routes one daemon broadcast to the display.
func (d *terminalDisplay) apply(b StateBroadcast) {
	switch ev := b.(type) {
	case BroadcastElapsedChanged:
		d.ShowElapsed(ev.Elapsed)
	case BroadcastElapsedReset:
		d.ClearElapsed()
	case BroadcastRotationCompleted:
		d.ShowRotations(ev.Rotations)
	case BroadcastSliceTicked:
		d.mu.Lock()
		d.expected = ev.Expected
		d.mu.Unlock()
		d.draw()
	case BroadcastInputChanged:
		d.mu.Lock()
		d.attached = ev.Attached
		d.expected = spin.Slice1
		d.mu.Unlock()
		d.draw()
	}
}

// Run renders broadcasts and forwards key presses until ctx is canceled or
// the user quits. 'r' requests a reset; 'q', Esc and Ctrl-C quit.
func (d *terminalDisplay) Run(ctx context.Context, broadcasts <-chan StateBroadcast, events chan<- Event) error {
	keys := make(chan tcell.Event, 16)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			// PollEvent returns nil once the screen is finalized.
			ev := d.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case keys <- ev:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case b, ok := <-broadcasts:
			if !ok {
				return nil
			}
			d.apply(b)

		case ev := <-keys:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				switch {
				case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC:
					return errTerminalQuit
				case ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
					return errTerminalQuit
				case ev.Key() == tcell.KeyRune && ev.Rune() == 'r':
					select {
					case events <- ResetGesture{Origin: "terminal"}:
					case <-ctx.Done():
						return nil
					}
				}
			case *tcell.EventResize:
				d.screen.Sync()
				d.draw()
			}
		}
	}
}

// lines returns the text rows of the current frame.
func (d *terminalDisplay) lines() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	elapsed := "--"
	if d.timing {
		elapsed = spin.FormatElapsed(d.elapsed)
	}
	input := "attached"
	if !d.attached {
		input = "detached"
	}
	return []string{
		"stickspin",
		"",
		"elapsed:    " + elapsed,
		fmt.Sprintf("rotations:  %d", d.rotations),
		"next slice: " + d.expected.String(),
		"input:      " + input,
		"",
		"r reset   q quit",
	}
}

func (d *terminalDisplay) draw() {
	lines := d.lines()

	d.screen.Clear()
	for y, line := range lines {
		style := tcell.StyleDefault
		if y == 0 {
			style = style.Bold(true)
		}
		for x, r := range []rune(line) {
			d.screen.SetContent(x, y, r, nil, style)
		}
	}
	d.screen.Show()
}
