package main

import (
	"errors"
	"os"
	"sync/atomic"
)

// evdevSource is the daemon's spin.Source. Enabling it lets raw events
// through the translator and optionally grabs the devices.
//
// With no files it runs in IPC-only mode and only flips the flag.
type evdevSource struct {
	files   []*os.File
	grab    bool
	grabFn  func(f *os.File, grab bool) error
	enabled atomic.Bool
}

func newEvdevSource(files []*os.File, grab bool) *evdevSource {
	return &evdevSource{files: files, grab: grab, grabFn: grabDevice}
}

// Enable is a no-op while already enabled; the kernel refuses a second grab.
func (s *evdevSource) Enable() error {
	if s.enabled.Load() {
		return nil
	}
	if s.grab {
		for i, f := range s.files {
			if err := s.grabFn(f, true); err != nil {
				// Release what was already grabbed.
				for _, g := range s.files[:i] {
					_ = s.grabFn(g, false)
				}
				return err
			}
		}
	}
	s.enabled.Store(true)
	return nil
}

func (s *evdevSource) Disable() error {
	if !s.enabled.Swap(false) || !s.grab {
		return nil
	}
	var errs []error
	for _, f := range s.files {
		if err := s.grabFn(f, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Active reports whether raw events should reach the reducer.
func (s *evdevSource) Active() bool {
	return s.enabled.Load()
}
