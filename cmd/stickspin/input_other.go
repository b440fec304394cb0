//go:build !linux

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// readInputDevices reads each device in its own goroutine and returns the
// first error.
func readInputDevices(ctx context.Context, files []*os.File, events chan<- inputEvent) error {
	if len(files) == 0 {
		return errors.New("no input devices provided")
	}

	errs := make(chan error, len(files))
	for _, f := range files {
		go func(f *os.File) {
			if err := readInputEvents(ctx, f, events); err != nil {
				errs <- fmt.Errorf("read from %s: %w", f.Name(), err)
			}
		}(f)
	}

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
