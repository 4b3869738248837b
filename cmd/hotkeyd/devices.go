package main

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	evdev "github.com/gvalkov/golang-evdev"
)

// sourceRole tags an input source with the part it plays in the daemon.
type sourceRole int

const (
	// roleVolume is the volume-key device (gpio-keys-vol). Grabbed
	// exclusively: the daemon is the sole consumer of volume keys.
	roleVolume sourceRole = iota

	// rolePad is the gamepad (gpio-keys). Monitored passively so the game
	// frontend keeps receiving its events; only MODE is of interest here.
	rolePad

	// roleJack is the headphone-jack switch device (codec).
	roleJack
)

func (r sourceRole) String() string {
	switch r {
	case roleVolume:
		return "volume"
	case rolePad:
		return "pad"
	case roleJack:
		return "jack"
	default:
		return "unknown"
	}
}

// source is an open input source in the multiplexer's wait set.
type source struct {
	role    sourceRole
	path    string
	name    string
	dev     *evdev.InputDevice
	grabbed bool
	open    bool

	// read drains all currently-buffered events from the device.
	// Overridable so tests can script event sequences.
	read func() ([]evdev.InputEvent, error)
}

// fd returns the underlying file descriptor for epoll registration.
func (s *source) fd() int {
	return int(s.dev.File.Fd())
}

// close releases the exclusive grab (if held) and closes the device.
// Safe to call more than once.
func (s *source) close(logger *slog.Logger) {
	if !s.open {
		return
	}
	s.open = false
	if s.grabbed {
		if err := s.dev.Release(); err != nil {
			logger.Warn("failed to release device grab", "path", s.path, "error", err)
		}
		s.grabbed = false
	}
	if err := s.dev.File.Close(); err != nil {
		logger.Warn("failed to close device", "path", s.path, "error", err)
	}
}

// errAlreadyGrabbed indicates another process holds the exclusive lock on the
// volume device. Fatal at startup: no volume control is possible without it.
var errAlreadyGrabbed = errors.New("device already grabbed by another process")

// deviceCaps is the capability set used for classification, decoupled from
// the evdev handle so the classification rule is testable in isolation.
type deviceCaps struct {
	keys        map[int]bool
	hasSwitches bool
}

// capsOf extracts the capability set of an opened device.
func capsOf(dev *evdev.InputDevice) deviceCaps {
	caps := deviceCaps{keys: make(map[int]bool)}
	for capType, codes := range dev.Capabilities {
		switch capType.Type {
		case evdev.EV_KEY:
			for _, c := range codes {
				caps.keys[c.Code] = true
			}
		case evdev.EV_SW:
			caps.hasSwitches = true
		}
	}
	return caps
}

// classifyDevice assigns a role from a device name and capability set.
// First match wins, in priority order:
//  1. name matches the gpio-keys family and the device exposes KEY_VOLUMEUP
//  2. name matches the family and the device exposes gamepad buttons
//  3. any device exposing switch events
//
// Devices matching none of the rules are ignored.
func classifyDevice(name, family string, caps deviceCaps) (sourceRole, bool) {
	if strings.Contains(strings.ToLower(name), strings.ToLower(family)) {
		if caps.keys[evdev.KEY_VOLUMEUP] {
			return roleVolume, true
		}
		if caps.keys[evdev.BTN_SOUTH] || caps.keys[evdev.BTN_DPAD_UP] {
			return rolePad, true
		}
	}
	if caps.hasSwitches {
		return roleJack, true
	}
	return 0, false
}

// discoverDevices enumerates event devices and classifies them.
//
// Sorting candidate paths makes the result deterministic when two devices
// qualify for the same role: the lowest stable path wins and the others are
// closed and logged as ignored, never silently grabbed. A probe failure on
// one candidate is ignored while others proceed.
func discoverDevices(glob, family string, logger *slog.Logger) map[sourceRole]*source {
	paths, err := filepath.Glob(glob)
	if err != nil {
		logger.Warn("bad device glob", "glob", glob, "error", err)
		return nil
	}
	sort.Strings(paths)

	found := make(map[sourceRole]*source)
	for _, path := range paths {
		dev, err := evdev.Open(path)
		if err != nil {
			// Probe failure on one candidate is not fatal to discovery.
			logger.Debug("probe failed", "path", path, "error", err)
			continue
		}

		role, ok := classifyDevice(dev.Name, family, capsOf(dev))
		if !ok {
			dev.File.Close()
			continue
		}
		if _, taken := found[role]; taken {
			logger.Info("ignoring extra device for role", "role", role.String(), "path", path, "name", dev.Name)
			dev.File.Close()
			continue
		}

		s := &source{
			role: role,
			path: path,
			name: dev.Name,
			dev:  dev,
			open: true,
		}
		s.read = s.dev.Read
		found[role] = s
	}
	return found
}

// acquire applies the per-role access policy to a discovered source.
//
// The volume source is grabbed exclusively; a grab failure means some other
// process already owns it and must be surfaced, not silently degraded. Pad
// and jack sources stay in shared mode so the frontend still sees their
// events.
func acquire(s *source) error {
	if s.role != roleVolume {
		return nil
	}
	if err := s.dev.Grab(); err != nil {
		return fmt.Errorf("%w: %s (%v)", errAlreadyGrabbed, s.path, err)
	}
	s.grabbed = true
	return nil
}
