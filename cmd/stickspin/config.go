package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"stickspin/internal/spin"
)

// Config is the top-level YAML configuration for the stickspin daemon.
//
// Precedence is defaults, then the config file, then STICKSPIN_* environment
// variables, then command-line flags. Validate runs last.
type Config struct {
	Input   InputConfig   `yaml:"input"`
	Gesture GestureConfig `yaml:"gesture"`
	Server  ServerConfig  `yaml:"server"`
	IPC     IPCConfig     `yaml:"ipc"`
	Audio   AudioConfig   `yaml:"audio"`
	Display DisplayConfig `yaml:"display"`
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	Devices []string `yaml:"devices,omitempty"`

	// IPCOnly runs without input devices; samples arrive over IPC only.
	IPCOnly bool `yaml:"ipc_only"`

	// Stick selects the default axis pair: "left" (ABS_X/ABS_Y) or "right" (ABS_RX/ABS_RY).
	Stick string `yaml:"stick"`

	// AxisX / AxisY override the axis codes picked by Stick.
	AxisX *int `yaml:"axis_x,omitempty"`
	AxisY *int `yaml:"axis_y,omitempty"`

	InvertY bool `yaml:"invert_y"`

	// ProbeRange asks the kernel for axis bounds (EVIOCGABS); AxisMin/AxisMax are
	// the fallback.
	ProbeRange bool `yaml:"probe_range"`
	AxisMin    int  `yaml:"axis_min"`
	AxisMax    int  `yaml:"axis_max"`

	// ResetButton is the key code that clears the attempt in progress. 0 disables it.
	ResetButton int `yaml:"reset_button"`

	// Grab takes exclusive access to the devices while attached (EVIOCGRAB).
	Grab bool `yaml:"grab"`

	UpdateHz int `yaml:"update_hz"`
}

type GestureConfig struct {
	DeadZone  float64 `yaml:"dead_zone"`
	TimeoutMS int     `yaml:"timeout_ms"`
}

type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	WSPath  string `yaml:"ws_path"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type AudioConfig struct {
	Enabled     bool    `yaml:"enabled"`
	SampleRate  int     `yaml:"sample_rate"`
	FrequencyHz float64 `yaml:"frequency_hz"`
	NoteMS      int     `yaml:"note_ms"`
	Volume      float64 `yaml:"volume"`
}

type DisplayConfig struct {
	Terminal bool `yaml:"terminal"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file,omitempty"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			Devices:     []string{defaultDevice},
			Stick:       defaultStick,
			InvertY:     true,
			ProbeRange:  true,
			AxisMin:     defaultAxisMin,
			AxisMax:     defaultAxisMax,
			ResetButton: defaultResetKey,
			UpdateHz:    defaultUpdateHz,
		},
		Gesture: GestureConfig{
			DeadZone:  spin.DefaultDeadZone,
			TimeoutMS: int(spin.DefaultTimeout / time.Millisecond),
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    defaultHTTPPort,
			WSPath:  defaultWSPath,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		Audio: AudioConfig{
			Enabled:     true,
			SampleRate:  defaultSampleRate,
			FrequencyHz: defaultChimeFreqHz,
			NoteMS:      defaultChimeNoteMS,
			Volume:      defaultChimeVolume,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
//
// Unknown fields and trailing documents are rejected.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// EnvOverrides holds STICKSPIN_* environment overrides. Unset variables stay nil.
type EnvOverrides struct {
	Devices     []string `env:"STICKSPIN_INPUT_DEVICES" envSeparator:","`
	IPCOnly     *bool    `env:"STICKSPIN_INPUT_IPC_ONLY"`
	Stick       *string  `env:"STICKSPIN_INPUT_STICK"`
	UpdateHz    *int     `env:"STICKSPIN_INPUT_UPDATE_HZ"`
	DeadZone    *float64 `env:"STICKSPIN_GESTURE_DEAD_ZONE"`
	TimeoutMS   *int     `env:"STICKSPIN_GESTURE_TIMEOUT_MS"`
	ServerPort  *int     `env:"STICKSPIN_SERVER_PORT"`
	SocketPath  *string  `env:"STICKSPIN_IPC_SOCKET"`
	AudioOn     *bool    `env:"STICKSPIN_AUDIO_ENABLED"`
	AudioVolume *float64 `env:"STICKSPIN_AUDIO_VOLUME"`
	Terminal    *bool    `env:"STICKSPIN_DISPLAY_TERMINAL"`
	LogLevel    *string  `env:"STICKSPIN_LOG_LEVEL"`
	LogFile     *string  `env:"STICKSPIN_LOG_FILE"`
}

// LoadEnvOverrides parses overrides from environ, or from the process
// environment when environ is nil.
func LoadEnvOverrides(environ map[string]string) (EnvOverrides, error) {
	var o EnvOverrides
	if err := env.ParseWithOptions(&o, env.Options{Environment: environ}); err != nil {
		return EnvOverrides{}, fmt.Errorf("parse env: %w", err)
	}
	return o, nil
}

// Apply merges the environment overrides into cfg.
func (o EnvOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if len(o.Devices) > 0 {
		cfg.Input.Devices = append([]string(nil), o.Devices...)
	}
	if o.IPCOnly != nil {
		cfg.Input.IPCOnly = *o.IPCOnly
	}
	if o.Stick != nil {
		cfg.Input.Stick = *o.Stick
	}
	if o.UpdateHz != nil {
		cfg.Input.UpdateHz = *o.UpdateHz
	}
	if o.DeadZone != nil {
		cfg.Gesture.DeadZone = *o.DeadZone
	}
	if o.TimeoutMS != nil {
		cfg.Gesture.TimeoutMS = *o.TimeoutMS
	}
	if o.ServerPort != nil {
		cfg.Server.Port = *o.ServerPort
	}
	if o.SocketPath != nil {
		cfg.IPC.SocketPath = *o.SocketPath
	}
	if o.AudioOn != nil {
		cfg.Audio.Enabled = *o.AudioOn
	}
	if o.AudioVolume != nil {
		cfg.Audio.Volume = *o.AudioVolume
	}
	if o.Terminal != nil {
		cfg.Display.Terminal = *o.Terminal
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFile != nil {
		cfg.Logging.File = *o.LogFile
	}
}

// FlagOverrides carries command-line overrides. main.go sets a pointer only
// for flags that were given explicitly.
type FlagOverrides struct {
	Device   *string
	IPCOnly  *bool
	Stick    *string
	UpdateHz *int

	DeadZone  *float64
	TimeoutMS *int

	ServerEnabled *bool
	ServerPort    *int

	IPCSocketPath *string

	AudioEnabled *bool

	Terminal *bool

	LogLevel *string
	LogFile  *string
}

// Apply merges the overrides into cfg. If an override pointer is nil, it is ignored.
// If the pointer is non-nil, the value is applied (even if it is a "zero value").
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.Device != nil {
		cfg.Input.Devices = []string{*o.Device}
	}
	if o.IPCOnly != nil {
		cfg.Input.IPCOnly = *o.IPCOnly
	}
	if o.Stick != nil {
		cfg.Input.Stick = *o.Stick
	}
	if o.UpdateHz != nil {
		cfg.Input.UpdateHz = *o.UpdateHz
	}

	if o.DeadZone != nil {
		cfg.Gesture.DeadZone = *o.DeadZone
	}
	if o.TimeoutMS != nil {
		cfg.Gesture.TimeoutMS = *o.TimeoutMS
	}

	if o.ServerEnabled != nil {
		cfg.Server.Enabled = *o.ServerEnabled
	}
	if o.ServerPort != nil {
		cfg.Server.Port = *o.ServerPort
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}

	if o.AudioEnabled != nil {
		cfg.Audio.Enabled = *o.AudioEnabled
	}

	if o.Terminal != nil {
		cfg.Display.Terminal = *o.Terminal
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
	if o.LogFile != nil {
		cfg.Logging.File = *o.LogFile
	}
}

// Validate checks the config and returns a user-friendly error.
// This is intended to be called after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Input
	if !c.Input.IPCOnly {
		if len(c.Input.Devices) == 0 {
			return errors.New("input.devices must not be empty (or set input.ipc_only)")
		}
		for i, dev := range c.Input.Devices {
			if dev == "" {
				return fmt.Errorf("input.devices[%d] is empty", i)
			}
		}
	}
	if c.Input.Stick != stickLeft && c.Input.Stick != stickRight {
		return fmt.Errorf("input.stick must be %q or %q", stickLeft, stickRight)
	}
	for name, code := range map[string]*int{"input.axis_x": c.Input.AxisX, "input.axis_y": c.Input.AxisY} {
		if code != nil && (*code < 0 || *code > 0x3f) {
			return fmt.Errorf("%s must be between 0 and 63", name)
		}
	}
	if c.Input.AxisMin >= c.Input.AxisMax {
		return errors.New("input.axis_min must be < input.axis_max")
	}
	if c.Input.ResetButton < 0 || c.Input.ResetButton > 0x2ff {
		return errors.New("input.reset_button must be between 0 and 767")
	}
	if c.Input.UpdateHz <= 0 || c.Input.UpdateHz > 1000 {
		return errors.New("input.update_hz must be between 1 and 1000")
	}

	// Gesture
	if c.Gesture.DeadZone < 0 || c.Gesture.DeadZone >= 1 {
		return errors.New("gesture.dead_zone must be >= 0 and < 1")
	}
	if c.Gesture.TimeoutMS <= 0 {
		return errors.New("gesture.timeout_ms must be > 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return errors.New("server.port must be between 1 and 65535")
		}
		if c.Server.WSPath == "" || c.Server.WSPath[0] != '/' {
			return errors.New("server.ws_path must start with /")
		}
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// Audio
	if c.Audio.Enabled {
		if c.Audio.SampleRate < 8000 {
			return errors.New("audio.sample_rate must be >= 8000")
		}
		if c.Audio.FrequencyHz <= 0 || c.Audio.FrequencyHz*3 >= float64(c.Audio.SampleRate) {
			return errors.New("audio.frequency_hz must be > 0 and below a third of audio.sample_rate")
		}
		if c.Audio.NoteMS <= 0 {
			return errors.New("audio.note_ms must be > 0")
		}
		if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
			return errors.New("audio.volume must be between 0 and 1")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ToGestureConfig converts the file config into the state machine thresholds.
func (c *Config) ToGestureConfig() spin.Config {
	return spin.Config{
		DeadZone: c.Gesture.DeadZone,
		Timeout:  time.Duration(c.Gesture.TimeoutMS) * time.Millisecond,
	}
}

// AxisCodes returns the X and Y axis codes for the configured stick.
func (c *Config) AxisCodes() (x, y uint16) {
	x, y = ABS_RX, ABS_RY
	if c.Input.Stick == stickLeft {
		x, y = ABS_X, ABS_Y
	}
	if c.Input.AxisX != nil {
		x = uint16(*c.Input.AxisX)
	}
	if c.Input.AxisY != nil {
		y = uint16(*c.Input.AxisY)
	}
	return x, y
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}

// ResolveConfig applies the full precedence chain: defaults, the config file
// (skipped when path is empty), environment, then flags. The result is validated.
func ResolveConfig(path string, environ map[string]string, flags FlagOverrides) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadConfigFile(path); err != nil {
			return Config{}, err
		}
	}

	envOverrides, err := LoadEnvOverrides(environ)
	if err != nil {
		return Config{}, err
	}
	envOverrides.Apply(&cfg)
	flags.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
