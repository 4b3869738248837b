package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the hotkeyd daemon.
//
// The config file is the primary configuration surface; flags exist for small
// overrides and for environments where a file is awkward (systemd drop-ins,
// debugging). Defaults and validation are centralized here so the rest of the
// code can assume a well-formed config.
type Config struct {
	// Input device discovery and classification
	Input InputConfig `yaml:"input"`

	// Audio mixer controls (volume level and output routing)
	Audio AudioConfig `yaml:"audio"`

	// Backlight control and brightness persistence
	Backlight BacklightConfig `yaml:"backlight"`

	// IPC configuration (hotkeyctl and boot-time brightness restore)
	IPC IPCConfig `yaml:"ipc"`

	// State WebSocket server for frontend OSD clients
	StateWS StateWSConfig `yaml:"state_ws"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

type InputConfig struct {
	// DeviceGlob is the glob used to enumerate candidate event devices.
	DeviceGlob string `yaml:"device_glob"`

	// NameFamily is the device-name substring identifying the gpio-keys
	// family; the volume-key device and the gamepad both match it and are
	// told apart by their key capability sets.
	NameFamily string `yaml:"name_family"`

	// RetryAttempts/RetryIntervalMS bound the startup wait for the
	// mandatory volume-key device.
	RetryAttempts   int `yaml:"retry_attempts"`
	RetryIntervalMS int `yaml:"retry_interval_ms"`

	// WaitTimeoutMS is the idle multiplexer timeout.
	WaitTimeoutMS int `yaml:"wait_timeout_ms"`
}

type AudioConfig struct {
	VolumeControl  string `yaml:"volume_control"`
	RouteControl   string `yaml:"route_control"`
	HeadphoneValue string `yaml:"headphone_value"`
	SpeakerValue   string `yaml:"speaker_value"`
	VolStepPct     int    `yaml:"vol_step_pct"`
}

type BacklightConfig struct {
	// SysfsDir holds the kernel backlight interface
	// (brightness + max_brightness files).
	SysfsDir string `yaml:"sysfs_dir"`

	StepPct  int `yaml:"step_pct"`
	FloorPct int `yaml:"floor_pct"`

	// SavePath is where the last-set brightness percentage is persisted
	// (bare textual integer, read back at boot by hotkeyctl).
	SavePath string `yaml:"save_path"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type StateWSConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Input: InputConfig{
			DeviceGlob:      defaultDeviceGlob,
			NameFamily:      defaultNameFamily,
			RetryAttempts:   defaultRetryAttempts,
			RetryIntervalMS: defaultRetryIntervalMS,
			WaitTimeoutMS:   defaultWaitTimeoutMS,
		},
		Audio: AudioConfig{
			VolumeControl:  defaultVolumeControl,
			RouteControl:   defaultRouteControl,
			HeadphoneValue: defaultHeadphoneValue,
			SpeakerValue:   defaultSpeakerValue,
			VolStepPct:     defaultVolStepPct,
		},
		Backlight: BacklightConfig{
			SysfsDir: defaultBacklightDir,
			StepPct:  defaultBrightStepPct,
			FloorPct: defaultBrightMinPct,
			SavePath: "~/.config/hotkeyd/brightness",
		},
		IPC: IPCConfig{
			SocketPath: "/tmp/hotkeyd.sock",
		},
		StateWS: StateWSConfig{
			Enabled: false,
			Port:    3002,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file.
//
// Unknown fields are rejected (helps catch typos) via KnownFields(true).
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

	// Only whitespace/comments are allowed after the document.
	if err := dec.Decode(&struct{}{}); err == nil {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies flag values on top of a loaded config. Flags pass
// pointers; each override is applied only when the pointer is non-nil.
type FlagOverrides struct {
	DeviceGlob *string
	NameFamily *string

	VolumeControl *string
	RouteControl  *string
	VolStepPct    *int

	BacklightDir *string
	BrightStep   *int
	BrightFloor  *int
	BrightSave   *string

	IPCSocketPath *string

	StateWSEnabled *bool
	StateWSPort    *int

	LogLevel *string
}

// Apply merges the overrides into cfg. Nil pointers are ignored.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.DeviceGlob != nil {
		cfg.Input.DeviceGlob = *o.DeviceGlob
	}
	if o.NameFamily != nil {
		cfg.Input.NameFamily = *o.NameFamily
	}

	if o.VolumeControl != nil {
		cfg.Audio.VolumeControl = *o.VolumeControl
	}
	if o.RouteControl != nil {
		cfg.Audio.RouteControl = *o.RouteControl
	}
	if o.VolStepPct != nil {
		cfg.Audio.VolStepPct = *o.VolStepPct
	}

	if o.BacklightDir != nil {
		cfg.Backlight.SysfsDir = *o.BacklightDir
	}
	if o.BrightStep != nil {
		cfg.Backlight.StepPct = *o.BrightStep
	}
	if o.BrightFloor != nil {
		cfg.Backlight.FloorPct = *o.BrightFloor
	}
	if o.BrightSave != nil {
		cfg.Backlight.SavePath = *o.BrightSave
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}

	if o.StateWSEnabled != nil {
		cfg.StateWS.Enabled = *o.StateWSEnabled
	}
	if o.StateWSPort != nil {
		cfg.StateWS.Port = *o.StateWSPort
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call after defaults + file + overrides are applied.
func (c *Config) Validate() error {
	// Input
	if c.Input.DeviceGlob == "" {
		return errors.New("input.device_glob must not be empty")
	}
	if c.Input.NameFamily == "" {
		return errors.New("input.name_family must not be empty")
	}
	if c.Input.RetryAttempts <= 0 {
		return errors.New("input.retry_attempts must be > 0")
	}
	if c.Input.RetryIntervalMS <= 0 {
		return errors.New("input.retry_interval_ms must be > 0")
	}
	if c.Input.WaitTimeoutMS <= 0 {
		return errors.New("input.wait_timeout_ms must be > 0")
	}

	// Audio
	if c.Audio.VolumeControl == "" {
		return errors.New("audio.volume_control must not be empty")
	}
	if c.Audio.RouteControl == "" {
		return errors.New("audio.route_control must not be empty")
	}
	if c.Audio.VolStepPct <= 0 || c.Audio.VolStepPct > 100 {
		return errors.New("audio.vol_step_pct must be between 1 and 100")
	}

	// Backlight
	if c.Backlight.SysfsDir == "" {
		return errors.New("backlight.sysfs_dir must not be empty")
	}
	if c.Backlight.StepPct <= 0 || c.Backlight.StepPct > 100 {
		return errors.New("backlight.step_pct must be between 1 and 100")
	}
	if c.Backlight.FloorPct < 0 || c.Backlight.FloorPct > 100 {
		return errors.New("backlight.floor_pct must be between 0 and 100")
	}
	if c.Backlight.SavePath == "" {
		return errors.New("backlight.save_path must not be empty")
	}

	// IPC
	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}

	// State WS
	if c.StateWS.Enabled {
		if c.StateWS.Port <= 0 || c.StateWS.Port > 65535 {
			return errors.New("state_ws.port must be a valid TCP port")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}

	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
// This is handy for config values like backlight.save_path.
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
