package main

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
// Logical actions
// ============================================================================
// Actions are the resolved output of the combo state machine and the IPC
// server. The dispatcher consumes each action exactly once and invokes the
// corresponding external control.
// ============================================================================

// Action is a marker interface for all dispatchable actions.
type Action interface {
	actionMarker()
}

// VolumeUp raises the output gain by the configured step.
type VolumeUp struct{}

func (VolumeUp) actionMarker() {}

// VolumeDown lowers the output gain by the configured step.
type VolumeDown struct{}

func (VolumeDown) actionMarker() {}

// BrightnessUp raises the backlight by the configured step and persists it.
type BrightnessUp struct{}

func (BrightnessUp) actionMarker() {}

// BrightnessDown lowers the backlight by the configured step, clamped to the
// floor, and persists the result.
type BrightnessDown struct{}

func (BrightnessDown) actionMarker() {}

// AudioRoute selects the output path. Headphones=true means the jack switch
// reported an insertion.
type AudioRoute struct {
	Headphones bool `json:"headphones"`
}

func (AudioRoute) actionMarker() {}

// SetBrightness sets the backlight to an absolute percentage and persists it.
// Used by the boot-time restore path over IPC; never produced by key events.
type SetBrightness struct {
	Percent int `json:"percent"`
}

func (SetBrightness) actionMarker() {}

// actionType returns the envelope type string of an action, for logging.
func actionType(a Action) string {
	switch a.(type) {
	case VolumeUp:
		return "volume_up"
	case VolumeDown:
		return "volume_down"
	case BrightnessUp:
		return "brightness_up"
	case BrightnessDown:
		return "brightness_down"
	case AudioRoute:
		return "audio_route"
	case SetBrightness:
		return "set_brightness"
	default:
		return fmt.Sprintf("%T", a)
	}
}

// ============================================================================
// JSON envelope
// ============================================================================
// IPC clients send actions as line-delimited JSON with a type discriminator:
//   {"type": "volume_up"}
//   {"type": "set_brightness", "data": {"percent": 40}}
// ============================================================================

// ActionEnvelope wraps an action with a type discriminator for JSON marshaling.
type ActionEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// UnmarshalAction deserializes a JSON action envelope into a concrete Action.
func UnmarshalAction(data []byte) (Action, error) {
	var env ActionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case "volume_up":
		return VolumeUp{}, nil
	case "volume_down":
		return VolumeDown{}, nil
	case "brightness_up":
		return BrightnessUp{}, nil
	case "brightness_down":
		return BrightnessDown{}, nil

	case "audio_route":
		var a AudioRoute
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal AudioRoute: %w", err)
		}
		return a, nil

	case "set_brightness":
		var a SetBrightness
		if err := json.Unmarshal(env.Data, &a); err != nil {
			return nil, fmt.Errorf("unmarshal SetBrightness: %w", err)
		}
		return a, nil

	default:
		return nil, fmt.Errorf("unknown action type: %q", env.Type)
	}
}

// MarshalAction serializes an Action into a JSON envelope with type discriminator.
func MarshalAction(a Action) ([]byte, error) {
	var env ActionEnvelope

	switch a := a.(type) {
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
		return nil, fmt.Errorf("unsupported action type: %T", a)
	}

	return json.Marshal(env)
}
