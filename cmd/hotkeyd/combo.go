package main

import (
	evdev "github.com/gvalkov/golang-evdev"
)

// comboState resolves raw input events into logical actions.
//
// The modifier (MODE) button lives on the passively-monitored gamepad while
// the volume keys live on the exclusively-grabbed volume device. This is the
// only place that correlates events across sources, and it deliberately makes
// no assumption about cross-source ordering: it only needs the current value
// of modifierHeld at the moment a volume-key edge arrives.
//
// Single-owner: only the control loop calls Resolve.
type comboState struct {
	modifierHeld bool
}

// Resolve consumes one raw event and returns the resulting action, if any.
//
// Modifier edges mutate modifierHeld but never emit an action. Only explicit
// press (1) and release (0) values change it; a key repeat (2) arrives while
// the button is still down and must not be mistaken for a release.
func (c *comboState) Resolve(evType, code uint16, value int32) (Action, bool) {
	switch evType {
	case evdev.EV_KEY:
		switch code {
		case evdev.BTN_MODE:
			switch value {
			case evValuePress:
				c.modifierHeld = true
			case evValueRelease:
				c.modifierHeld = false
			}
			return nil, false

		case evdev.KEY_VOLUMEUP:
			if value == evValuePress || value == evValueRepeat {
				if c.modifierHeld {
					return BrightnessUp{}, true
				}
				return VolumeUp{}, true
			}
			return nil, false

		case evdev.KEY_VOLUMEDOWN:
			if value == evValuePress || value == evValueRepeat {
				if c.modifierHeld {
					return BrightnessDown{}, true
				}
				return VolumeDown{}, true
			}
			return nil, false
		}

	case evdev.EV_SW:
		if code == evdev.SW_HEADPHONE_INSERT {
			return AudioRoute{Headphones: value == 1}, true
		}
	}

	return nil, false
}

// ModifierHeld reports the current modifier state, for state snapshots.
func (c *comboState) ModifierHeld() bool {
	return c.modifierHeld
}
