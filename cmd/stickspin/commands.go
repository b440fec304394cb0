package main

import "fmt"

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
type Command interface {
	commandMarker()
	String() string
}

// CmdPlayChime fires the completion effect once.
type CmdPlayChime struct {
	Rotations int
}

func (CmdPlayChime) commandMarker() {}
func (c CmdPlayChime) String() string {
	return fmt.Sprintf("CmdPlayChime(rotations=%d)", c.Rotations)
}

// CmdEnableInput enables the input source.
type CmdEnableInput struct{}

func (CmdEnableInput) commandMarker() {}
func (CmdEnableInput) String() string { return "CmdEnableInput()" }

// CmdDisableInput disables the input source.
type CmdDisableInput struct {
	Reason string
}

func (CmdDisableInput) commandMarker() {}
func (c CmdDisableInput) String() string {
	return fmt.Sprintf("CmdDisableInput(reason=%q)", c.Reason)
}

// CmdStopDaemon shuts the daemon down with an error.
type CmdStopDaemon struct {
	Reason string
}

func (CmdStopDaemon) commandMarker() {}
func (c CmdStopDaemon) String() string {
	return fmt.Sprintf("CmdStopDaemon(reason=%q)", c.Reason)
}

// CmdPublishStateSnapshot delivers a reducer-produced snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }
