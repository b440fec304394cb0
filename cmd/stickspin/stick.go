package main

import (
	"context"
	"log/slog"
	"os"
)

// axisRange is the raw value range reported for an absolute axis.
type axisRange struct {
	Min int32
	Max int32
}

// normalize maps a raw axis value to [-1, 1] around the range center.
func (r axisRange) normalize(v int32) float64 {
	if r.Max <= r.Min {
		return 0
	}
	center := (float64(r.Min) + float64(r.Max)) / 2
	half := (float64(r.Max) - float64(r.Min)) / 2
	n := (float64(v) - center) / half
	switch {
	case n > 1:
		return 1
	case n < -1:
		return -1
	}
	return n
}

// stickMapper turns raw evdev events into reducer events.
//
// Axis changes are buffered and emitted as one StickMoved per SYN_REPORT.
type stickMapper struct {
	xCode, yCode   uint16
	xRange, yRange axisRange
	invertY        bool
	resetKey       uint16 // 0 disables the reset button

	x, y  float64
	dirty bool
}

// handle consumes one event and returns the reducer event it completes, if any.
func (m *stickMapper) handle(ev inputEvent) (Event, bool) {
	switch ev.Type {
	case EV_ABS:
		switch ev.Code {
		case m.xCode:
			m.x = m.xRange.normalize(ev.Value)
			m.dirty = true
		case m.yCode:
			m.y = m.yRange.normalize(ev.Value)
			if m.invertY {
				m.y = -m.y
			}
			m.dirty = true
		}

	case EV_KEY:
		if m.resetKey != 0 && ev.Code == m.resetKey && ev.Value == evValuePress {
			return ResetGesture{Origin: "button"}, true
		}

	case EV_SYN:
		if ev.Code == SYN_REPORT && m.dirty {
			m.dirty = false
			return StickMoved{X: m.x, Y: m.y}, true
		}
	}
	return nil, false
}

// newStickMapper builds a mapper from config, probing axis ranges on the
// first device when requested.
func newStickMapper(cfg Config, files []*os.File, logger *slog.Logger) *stickMapper {
	xCode, yCode := cfg.AxisCodes()
	fallback := axisRange{Min: int32(cfg.Input.AxisMin), Max: int32(cfg.Input.AxisMax)}

	m := &stickMapper{
		xCode:    xCode,
		yCode:    yCode,
		xRange:   fallback,
		yRange:   fallback,
		invertY:  cfg.Input.InvertY,
		resetKey: uint16(cfg.Input.ResetButton),
	}

	if !cfg.Input.ProbeRange || len(files) == 0 {
		return m
	}

	if r, err := probeAxisRange(files[0], xCode); err != nil {
		logger.Warn("axis range probe failed, using configured range", "axis", xCode, "error", err)
	} else {
		m.xRange = r
	}
	if r, err := probeAxisRange(files[0], yCode); err != nil {
		logger.Warn("axis range probe failed, using configured range", "axis", yCode, "error", err)
	} else {
		m.yRange = r
	}
	logger.Debug("stick axes",
		"x_code", xCode, "x_min", m.xRange.Min, "x_max", m.xRange.Max,
		"y_code", yCode, "y_min", m.yRange.Min, "y_max", m.yRange.Max,
	)
	return m
}

// runInputTranslator maps raw events to reducer events. Events are dropped
// while active reports false.
func runInputTranslator(
	ctx context.Context,
	raw <-chan inputEvent,
	mapper *stickMapper,
	active func() bool,
	out chan<- Event,
) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-raw:
			if !ok {
				return
			}
			if active != nil && !active() {
				continue
			}
			e, ok := mapper.handle(ev)
			if !ok {
				continue
			}
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}
}
