package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestDefaultConfigIsValid tests that the shipped defaults pass validation.
func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
}

// TestLoadConfigFile tests YAML parsing over defaults.
func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
audio:
  vol_step_pct: 5
backlight:
  floor_pct: 10
logging:
  level: debug
`)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile failed: %v", err)
	}

	if cfg.Audio.VolStepPct != 5 {
		t.Errorf("expected vol_step_pct 5, got %d", cfg.Audio.VolStepPct)
	}
	if cfg.Backlight.FloorPct != 10 {
		t.Errorf("expected floor_pct 10, got %d", cfg.Backlight.FloorPct)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Untouched fields keep their defaults
	if cfg.Audio.VolumeControl != defaultVolumeControl {
		t.Errorf("expected default volume control, got %s", cfg.Audio.VolumeControl)
	}
	if cfg.Input.RetryAttempts != defaultRetryAttempts {
		t.Errorf("expected default retry attempts, got %d", cfg.Input.RetryAttempts)
	}
}

// TestLoadConfigFile_UnknownField tests that typos are rejected.
func TestLoadConfigFile_UnknownField(t *testing.T) {
	path := writeConfig(t, `
audio:
  vol_step_pcnt: 5
`)

	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

// TestLoadConfigFile_TrailingDocument tests multi-document rejection.
func TestLoadConfigFile_TrailingDocument(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
---
logging:
  level: debug
`)

	if _, err := LoadConfigFile(path); err == nil {
		t.Fatal("expected error for trailing YAML document")
	}
}

// TestFlagOverrides tests that only non-nil overrides are applied.
func TestFlagOverrides(t *testing.T) {
	cfg := DefaultConfig()

	step := 4
	level := "debug"
	overrides := FlagOverrides{
		VolStepPct: &step,
		LogLevel:   &level,
	}
	overrides.Apply(&cfg)

	if cfg.Audio.VolStepPct != 4 {
		t.Errorf("expected vol step 4, got %d", cfg.Audio.VolStepPct)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Backlight.StepPct != defaultBrightStepPct {
		t.Errorf("nil override must not touch bright step, got %d", cfg.Backlight.StepPct)
	}
}

// TestValidate tests rejection of out-of-range values.
func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"zero retry attempts", func(c *Config) { c.Input.RetryAttempts = 0 }, "retry_attempts"},
		{"empty device glob", func(c *Config) { c.Input.DeviceGlob = "" }, "device_glob"},
		{"vol step too big", func(c *Config) { c.Audio.VolStepPct = 101 }, "vol_step_pct"},
		{"negative floor", func(c *Config) { c.Backlight.FloorPct = -1 }, "floor_pct"},
		{"empty save path", func(c *Config) { c.Backlight.SavePath = "" }, "save_path"},
		{"bad ws port", func(c *Config) { c.StateWS.Enabled = true; c.StateWS.Port = 0 }, "port"},
		{"empty log level", func(c *Config) { c.Logging.Level = "" }, "level"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.errSub) {
				t.Errorf("expected error mentioning %q, got: %v", tc.errSub, err)
			}
		})
	}
}

// TestParseLogLevel tests the accepted level names.
func TestParseLogLevel(t *testing.T) {
	for _, name := range []string{"error", "warn", "warning", "info", "debug", "INFO"} {
		if _, err := parseLogLevel(name); err != nil {
			t.Errorf("level %q should parse: %v", name, err)
		}
	}
	if _, err := parseLogLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hotkeyd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
