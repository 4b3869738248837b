package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ============================================================================
// hotkeyctl - Command-line IPC Client
// ============================================================================
// This tool sends actions to the hotkeyd daemon via IPC.
//
// Usage:
//   hotkeyctl volume-up
//   hotkeyctl brightness-down
//   hotkeyctl set-brightness 40
//   hotkeyctl route hp
//   hotkeyctl restore
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/hotkeyd.sock)
// ============================================================================

const defaultSocketPath = "/tmp/hotkeyd.sock"

const defaultBrightnessRecord = "~/.config/hotkeyd/brightness"

// Action types (duplicated from the daemon for a standalone binary)
type Action interface{}

type VolumeUp struct{}

type VolumeDown struct{}

type BrightnessUp struct{}

type BrightnessDown struct{}

type AudioRoute struct {
	Headphones bool `json:"headphones"`
}

type SetBrightness struct {
	Percent int `json:"percent"`
}

// ActionEnvelope wraps actions for JSON
type ActionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IPCResponse represents the daemon's response
type IPCResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func main() {
	socketPath := defaultSocketPath

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	var action Action

	switch args[0] {
	case "volume-up", "vol-up":
		action = VolumeUp{}

	case "volume-down", "vol-down":
		action = VolumeDown{}

	case "brightness-up":
		action = BrightnessUp{}

	case "brightness-down":
		action = BrightnessDown{}

	case "set-brightness":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: set-brightness requires a percentage\n")
			os.Exit(1)
		}
		pct, err := strconv.Atoi(args[1])
		if err != nil || pct < 0 || pct > 100 {
			fmt.Fprintf(os.Stderr, "error: invalid percentage: %s\n", args[1])
			os.Exit(1)
		}
		action = SetBrightness{Percent: pct}

	case "route":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: route requires hp or spk\n")
			os.Exit(1)
		}
		switch args[1] {
		case "hp", "headphones":
			action = AudioRoute{Headphones: true}
		case "spk", "speaker":
			action = AudioRoute{Headphones: false}
		default:
			fmt.Fprintf(os.Stderr, "error: route must be hp or spk, got %s\n", args[1])
			os.Exit(1)
		}

	case "restore":
		// Boot-time restore of the last-set brightness. The record path
		// can be overridden as the second argument.
		recordPath := defaultBrightnessRecord
		if len(args) >= 2 {
			recordPath = args[1]
		}
		pct, err := readBrightnessRecord(recordPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		action = SetBrightness{Percent: pct}

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err := sendAction(socketPath, action); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

// readBrightnessRecord reads the persisted brightness percentage: a bare
// textual integer written by the daemon.
func readBrightnessRecord(path string) (int, error) {
	path = expandPath(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read brightness record: %w", err)
	}
	pct, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse brightness record %s: %w", path, err)
	}
	if pct < 0 || pct > 100 {
		return 0, fmt.Errorf("brightness record out of range: %d", pct)
	}
	return pct, nil
}

func expandPath(p string) string {
	if !strings.HasPrefix(p, "~") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(home, p[2:])
	}
	return p
}

func sendAction(socketPath string, action Action) error {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := marshalAction(action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return fmt.Errorf("send action: %w", err)
	}

	var response IPCResponse
	decoder := json.NewDecoder(conn)
	if err := decoder.Decode(&response); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if response.Status == "error" {
		return fmt.Errorf("daemon error: %s", response.Error)
	}

	return nil
}

func marshalAction(action Action) ([]byte, error) {
	var env ActionEnvelope

	switch a := action.(type) {
	case VolumeUp:
		env.Type = "volume_up"

	case VolumeDown:
		env.Type = "volume_down"

	case BrightnessUp:
		env.Type = "brightness_up"

	case BrightnessDown:
		env.Type = "brightness_down"

	case AudioRoute:
		env.Type = "audio_route"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal AudioRoute: %w", err)
		}
		env.Data = data

	case SetBrightness:
		env.Type = "set_brightness"
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshal SetBrightness: %w", err)
		}
		env.Data = data

	default:
		return nil, fmt.Errorf("unknown action type: %T", action)
	}

	return json.Marshal(env)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `hotkeyctl - Control the hotkeyd daemon via IPC

Usage:
  hotkeyctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: %s)

Commands:
  volume-up, vol-up        Step the volume up
  volume-down, vol-down    Step the volume down
  brightness-up            Step the screen brightness up
  brightness-down          Step the screen brightness down
  set-brightness <pct>     Set absolute brightness percentage (0-100)
  route hp|spk             Select headphone or speaker output
  restore [path]           Restore the persisted brightness (boot hook)
  help, -h, --help         Show this help message

Examples:
  hotkeyctl brightness-up
  hotkeyctl set-brightness 40
  hotkeyctl -socket /var/run/hotkeyd.sock route spk
`, defaultSocketPath)
}
