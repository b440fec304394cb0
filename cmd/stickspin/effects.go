package main

import (
	"errors"
	"log/slog"
	"time"

	"stickspin/internal/spin"
)

// effectDeps are the collaborators commands are executed against.
type effectDeps struct {
	// Source is the input source toggled by attach/detach.
	Source spin.Source

	// Chime is fired once per completed rotation.
	Chime spin.Effect

	// Stop ends the daemon with the given cause.
	Stop func(error)
}

// errDaemonStopped is the cause passed to effectDeps.Stop.
var errDaemonStopped = errors.New("daemon stopped")

// runEffect executes a single reducer-emitted Command and emits an
// observation Event via onEvent.
//
// It must never call Reduce() directly; the daemon loop sequences
// Reduce -> Commands -> runEffect -> Events -> Reduce.
func runEffect(
	deps effectDeps,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	if onEvent == nil {
		return
	}

	now := time.Now()

	switch c := cmd.(type) {
	case CmdPlayChime:
		if deps.Chime == nil {
			return
		}
		deps.Chime.Play()

	case CmdEnableInput:
		if deps.Source == nil {
			logger.Error("cannot attach input", "error", spin.ErrNoSource)
			onEvent(CommandFailed{Command: cmd, Err: spin.ErrNoSource, At: now})
			return
		}
		if err := deps.Source.Enable(); err != nil {
			logger.Error("enable input source failed", "error", err)
			onEvent(CommandFailed{Command: cmd, Err: err, At: now})
			return
		}
		onEvent(InputEnabled{At: now})

	case CmdDisableInput:
		if deps.Source == nil {
			onEvent(InputDisabled{Reason: c.Reason, At: now})
			return
		}
		if err := deps.Source.Disable(); err != nil {
			// The daemon still treats the input as detached.
			logger.Warn("disable input source failed", "error", err)
		}
		onEvent(InputDisabled{Reason: c.Reason, At: now})

	case CmdStopDaemon:
		if deps.Stop == nil {
			logger.Warn("stop requested without a stop hook", "reason", c.Reason)
			return
		}
		deps.Stop(stopCause{reason: c.Reason})

	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		// Never block the daemon loop.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		onEvent(CommandFailed{
			Command: cmd,
			Err:     errUnknownCommand{cmd: cmd},
			At:      now,
		})
	}
}

// stopCause wraps errDaemonStopped with the reducer's reason.
type stopCause struct {
	reason string
}

func (e stopCause) Error() string { return "daemon stopped: " + e.reason }
func (e stopCause) Unwrap() error { return errDaemonStopped }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
