package main

import "time"

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_ABS = 0x03

	SYN_REPORT = 0x00

	ABS_X  = 0x00
	ABS_Y  = 0x01
	ABS_RX = 0x03
	ABS_RY = 0x04

	BTN_SOUTH  = 0x130
	BTN_SELECT = 0x13a
	BTN_START  = 0x13b
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Stick selection names used by input.stick
const (
	stickLeft  = "left"
	stickRight = "right"
)

const (
	defaultDevice     = "/dev/input/event0"
	defaultStick      = stickRight
	defaultUpdateHz   = 60
	defaultAxisMin    = -32768
	defaultAxisMax    = 32767
	defaultResetKey   = BTN_SELECT
	defaultSocketPath = "/tmp/stickspin.sock"
	defaultHTTPPort   = 3002
	defaultWSPath     = "/ws"

	// Completion chime
	defaultSampleRate  = 44100
	defaultChimeFreqHz = 880.0
	defaultChimeNoteMS = 120
	defaultChimeVolume = 0.5
	chimeAttack        = 5 * time.Millisecond
	chimeRelease       = 80 * time.Millisecond
	chimeGap           = 30 * time.Millisecond
)

// elapsedBroadcastStep is the resolution of elapsed_changed broadcasts.
// A new broadcast is emitted only when the rounded value changes.
const elapsedBroadcastStep = 10 * time.Millisecond
