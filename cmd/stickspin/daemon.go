package main

import (
	"context"
	"log/slog"
	"time"

	"stickspin/internal/spin"
)

// runDaemon is the main daemon loop that:
//   - Receives Events from input, IPC, HTTP and the terminal display
//   - Emits Tick events on a fixed cadence
//   - Reduces events into (state, commands, broadcasts)
//   - Executes commands and feeds observations back into the reducer
//
// Shutdown semantics:
//   - Exits when ctx is canceled
//   - Exits cleanly when the events channel is closed
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	deps effectDeps,
	cfg spin.Config,
	state *DaemonState,
	updateHz int,
	publish func(StateBroadcast),
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}
	if updateHz <= 0 {
		updateHz = defaultUpdateHz
	}

	ticker := time.NewTicker(time.Second / time.Duration(updateHz))
	defer ticker.Stop()

	lastTick := time.Now()

	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	// Reduce all queued events, enqueuing any resulting commands.
	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
			for _, b := range rr.Broadcasts {
				logBroadcast(logger, b)
				if publish != nil {
					publish(b)
				}
			}
		}
	}

	// Execute all queued commands, reducing observations as they arrive.
	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(deps, cmd, logger, enqueueEvent)
			flushEvents()
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			dt := now.Sub(lastTick)
			lastTick = now
			enqueueEvent(Tick{Now: now, Dt: dt})
			flushEvents()
			flushCommands()
		}
	}
}
