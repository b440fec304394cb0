package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"

	"stickspin/internal/spin"
)

const version = "1.0.0"

const (
	eventQueueSize     = 256
	broadcastQueueSize = 256
)

func printVersion() {
	fmt.Printf("stickspin v%s\n", version)
	fmt.Println("Analog stick rotation trainer daemon")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  stickspin [OPTIONS]")
	fmt.Println("  stickspin probe -device PATH")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads a gamepad stick from Linux input devices and counts full")
	fmt.Println("  counter-clockwise rotations completed within the timeout. Elapsed time")
	fmt.Println("  and completions are published over WebSocket and shown in the terminal.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML config file (defaults are used when empty)")
	fmt.Println("  -device string")
	fmt.Printf("        Linux input event device (default %q)\n", defaultDevice)
	fmt.Println("  -ipc-only")
	fmt.Println("        Run without input devices; samples arrive over IPC")
	fmt.Println("  -stick string")
	fmt.Println("        Stick to read: left|right (default \"right\")")
	fmt.Println("  -update-hz int")
	fmt.Printf("        Sampling frequency in Hz (default %d)\n", defaultUpdateHz)
	fmt.Println("  -dead-zone float")
	fmt.Printf("        Stick magnitude treated as centered (default %.2f)\n", spin.DefaultDeadZone)
	fmt.Println("  -timeout-ms int")
	fmt.Printf("        Rotation timeout in ms (default %d)\n", spin.DefaultTimeout.Milliseconds())
	fmt.Println("  -server")
	fmt.Println("        Serve WebSocket and /api/state (default true)")
	fmt.Println("  -port int")
	fmt.Printf("        HTTP listener port (default %d)\n", defaultHTTPPort)
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultSocketPath)
	fmt.Println("  -audio")
	fmt.Println("        Play a chime per completed rotation (default true)")
	fmt.Println("  -terminal")
	fmt.Println("        Show the terminal display")
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println("  -log-file string")
	fmt.Println("        Write logs to this file instead of stdout")
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  STICKSPIN_* variables override the config file; flags override both.")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input devices (run as root or add user to 'input' group)")
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "probe" {
		os.Exit(runProbeSubcommand(os.Args[2:]))
	}
	os.Exit(run(os.Args[1:]))
}

// parseFlags parses daemon flags and returns the config path plus overrides
// for the flags that were set explicitly.
func parseFlags(args []string) (path string, o FlagOverrides, exit bool, err error) {
	fs := flag.NewFlagSet("stickspin", flag.ContinueOnError)
	fs.Usage = printUsage

	var (
		configPath    = fs.String("config", "", "YAML config file")
		device        = fs.String("device", defaultDevice, "Linux input event device")
		ipcOnly       = fs.Bool("ipc-only", false, "Run without input devices")
		stick         = fs.String("stick", defaultStick, "Stick to read: left|right")
		updateHz      = fs.Int("update-hz", defaultUpdateHz, "Sampling frequency in Hz")
		deadZone      = fs.Float64("dead-zone", spin.DefaultDeadZone, "Stick magnitude treated as centered")
		timeoutMS     = fs.Int("timeout-ms", int(spin.DefaultTimeout.Milliseconds()), "Rotation timeout in ms")
		serverEnabled = fs.Bool("server", true, "Serve WebSocket and /api/state")
		serverPort    = fs.Int("port", defaultHTTPPort, "HTTP listener port")
		ipcSocketPath = fs.String("ipc-socket", defaultSocketPath, "Unix domain socket path for IPC")
		audioEnabled  = fs.Bool("audio", true, "Play a chime per completed rotation")
		terminal      = fs.Bool("terminal", false, "Show the terminal display")
		logLevel      = fs.String("log-level", "info", "Log level: error, warn, info, debug")
		logFile       = fs.String("log-file", "", "Write logs to this file")
		showVersion   = fs.Bool("version", false, "Print version and exit")
	)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return "", FlagOverrides{}, true, nil
		}
		return "", FlagOverrides{}, false, err
	}
	if *showVersion {
		printVersion()
		return "", FlagOverrides{}, true, nil
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			o.Device = device
		case "ipc-only":
			o.IPCOnly = ipcOnly
		case "stick":
			o.Stick = stick
		case "update-hz":
			o.UpdateHz = updateHz
		case "dead-zone":
			o.DeadZone = deadZone
		case "timeout-ms":
			o.TimeoutMS = timeoutMS
		case "server":
			o.ServerEnabled = serverEnabled
		case "port":
			o.ServerPort = serverPort
		case "ipc-socket":
			o.IPCSocketPath = ipcSocketPath
		case "audio":
			o.AudioEnabled = audioEnabled
		case "terminal":
			o.Terminal = terminal
		case "log-level":
			o.LogLevel = logLevel
		case "log-file":
			o.LogFile = logFile
		}
	})

	return *configPath, o, false, nil
}

func run(args []string) int {
	configPath, flags, exit, err := parseFlags(args)
	if exit {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 2
	}

	cfg, err := ResolveConfig(configPath, nil, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}

	logOut, closeLog, err := openLogOutput(cfg.Logging.File, cfg.Display.Terminal)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	defer closeLog()

	level, _ := parseLogLevel(cfg.Logging.Level) // validated
	logger := setupLogger(level, logOut)

	logger.Debug("starting stickspin", "version", version)
	logger.Debug("configuration",
		"devices", cfg.Input.Devices,
		"ipc_only", cfg.Input.IPCOnly,
		"stick", cfg.Input.Stick,
		"update_hz", cfg.Input.UpdateHz,
		"dead_zone", cfg.Gesture.DeadZone,
		"timeout_ms", cfg.Gesture.TimeoutMS,
		"server_enabled", cfg.Server.Enabled,
		"server_port", cfg.Server.Port,
		"ipc_socket", cfg.IPC.SocketPath,
		"audio_enabled", cfg.Audio.Enabled,
		"terminal", cfg.Display.Terminal,
	)

	// Open input devices. A missing device is fatal.
	var files []*os.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	if !cfg.Input.IPCOnly {
		for _, path := range cfg.Input.Devices {
			f, err := os.Open(ExpandPath(path))
			if err != nil {
				logger.Error("failed to open input device", "device", path, "error", err, "tip", "run as root or add user to 'input' group")
				return 1
			}
			files = append(files, f)
		}
	}

	source := newEvdevSource(files, cfg.Input.Grab)
	if err := source.Enable(); err != nil {
		logger.Error("failed to attach input", "error", err)
		return 1
	}
	defer func() {
		if err := source.Disable(); err != nil {
			logger.Warn("failed to release input", "error", err)
		}
	}()

	var effect spin.Effect = nopChime{}
	if cfg.Audio.Enabled {
		c, err := newSpeakerChime(cfg.Audio, logger)
		if err != nil {
			logger.Warn("audio unavailable, chime disabled", "error", err)
		} else {
			effect = c
		}
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancelCause(sigCtx)
	defer cancel(nil)

	events := make(chan Event, eventQueueSize)

	var outputs []chan<- StateBroadcast
	var wsBroadcasts, tuiBroadcasts chan StateBroadcast
	if cfg.Server.Enabled {
		wsBroadcasts = make(chan StateBroadcast, broadcastQueueSize)
		outputs = append(outputs, wsBroadcasts)
	}
	if cfg.Display.Terminal {
		tuiBroadcasts = make(chan StateBroadcast, broadcastQueueSize)
		outputs = append(outputs, tuiBroadcasts)
	}
	fanout := newBroadcastFanout(logger, outputs...)

	state := &DaemonState{Attached: true, Gesture: spin.Idle()}
	deps := effectDeps{
		Source: source,
		Chime:  effect,
		Stop:   cancel,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runDaemon(gctx, events, deps, cfg.ToGestureConfig(), state, cfg.Input.UpdateHz, fanout.Publish, logger)
		return nil
	})

	if len(files) > 0 {
		raw := make(chan inputEvent, eventQueueSize)
		mapper := newStickMapper(cfg, files, logger)

		g.Go(func() error {
			runInputTranslator(gctx, raw, mapper, source.Active, events)
			return nil
		})
		g.Go(func() error {
			err := readInputDevices(gctx, files, raw)
			if gctx.Err() != nil {
				return nil
			}
			logger.Error("input reader stopped", "error", err)
			select {
			case events <- InputLost{Reason: err.Error()}:
			case <-gctx.Done():
			}
			return nil
		})
	}

	g.Go(func() error {
		if err := runIPCServer(gctx, ExpandPath(cfg.IPC.SocketPath), events, logger); err != nil {
			return fmt.Errorf("IPC server: %w", err)
		}
		return nil
	})

	if cfg.Server.Enabled {
		srv := NewServer(logger, events, StateServerConfig{})
		mux := http.NewServeMux()
		srv.Register(mux, cfg.Server.WSPath)

		g.Go(func() error {
			srv.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, srv.Hub(), wsBroadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.Server.Port, mux, logger)
		})
	}

	if cfg.Display.Terminal {
		screen, err := tcell.NewScreen()
		if err != nil {
			logger.Error("failed to create terminal screen", "error", err)
			cancel(nil)
			_ = g.Wait()
			return 1
		}
		display, err := newTerminalDisplay(screen)
		if err != nil {
			logger.Error("failed to start terminal display", "error", err)
			cancel(nil)
			_ = g.Wait()
			return 1
		}
		defer display.Close()

		g.Go(func() error {
			err := display.Run(gctx, tuiBroadcasts, events)
			if errors.Is(err, errTerminalQuit) {
				cancel(nil)
				return nil
			}
			return err
		})
	}

	logger.Info("listening",
		"devices", len(files),
		"ipc", cfg.IPC.SocketPath,
		"server", cfg.Server.Enabled,
		"port", cfg.Server.Port,
		"update_rate_hz", cfg.Input.UpdateHz,
	)

	err = g.Wait()
	logger.Info("shutting down")

	if err != nil {
		logger.Error("daemon failed", "error", err)
		return 1
	}
	if cause := context.Cause(ctx); errors.Is(cause, errDaemonStopped) {
		logger.Error("daemon stopped", "error", cause)
		return 1
	}
	return 0
}

func printProbeUsage() {
	fmt.Println("USAGE:")
	fmt.Println("  stickspin probe -device PATH")
	fmt.Println()
	fmt.Println("Prints the kernel-reported range of the stick axes.")
}

// runProbeSubcommand prints the axis ranges of one device.
func runProbeSubcommand(args []string) int {
	fs := flag.NewFlagSet("probe", flag.ContinueOnError)
	device := fs.String("device", defaultDevice, "Linux input event device")
	fs.Usage = printProbeUsage

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger := setupLogger(LogLevelInfo, os.Stderr)

	f, err := os.Open(ExpandPath(*device))
	if err != nil {
		logger.Error("failed to open input device", "device", *device, "error", err)
		return 1
	}
	defer f.Close()

	axes := []struct {
		name string
		code uint16
	}{
		{"ABS_X", ABS_X},
		{"ABS_Y", ABS_Y},
		{"ABS_RX", ABS_RX},
		{"ABS_RY", ABS_RY},
	}
	for _, a := range axes {
		printAxisRange(a.name, a.code, f, logger)
	}
	return 0
}

func printAxisRange(name string, code uint16, f *os.File, logger *slog.Logger) {
	r, err := probeAxisRange(f, code)
	if err != nil {
		logger.Debug("axis probe failed", "axis", name, "error", err)
		fmt.Printf("%-7s (0x%02x): unavailable\n", name, code)
		return
	}
	fmt.Printf("%-7s (0x%02x): min=%d max=%d\n", name, code, r.Min, r.Max)
}
