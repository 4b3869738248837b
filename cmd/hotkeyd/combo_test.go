package main

import (
	"testing"

	evdev "github.com/gvalkov/golang-evdev"
)

// TestCombo_PlainVolumeKeys tests volume keys without the modifier.
func TestCombo_PlainVolumeKeys(t *testing.T) {
	c := &comboState{}

	a, ok := c.Resolve(evdev.EV_KEY, evdev.KEY_VOLUMEUP, evValuePress)
	if !ok {
		t.Fatal("expected an action for volume-up press")
	}
	if _, isUp := a.(VolumeUp); !isUp {
		t.Fatalf("expected VolumeUp, got %T", a)
	}

	a, ok = c.Resolve(evdev.EV_KEY, evdev.KEY_VOLUMEDOWN, evValuePress)
	if !ok {
		t.Fatal("expected an action for volume-down press")
	}
	if _, isDown := a.(VolumeDown); !isDown {
		t.Fatalf("expected VolumeDown, got %T", a)
	}
}

// TestCombo_ReleasesEmitNothing tests that key releases never produce actions.
func TestCombo_ReleasesEmitNothing(t *testing.T) {
	c := &comboState{}

	for _, code := range []uint16{evdev.KEY_VOLUMEUP, evdev.KEY_VOLUMEDOWN, evdev.BTN_MODE} {
		if a, ok := c.Resolve(evdev.EV_KEY, code, evValueRelease); ok {
			t.Errorf("release of code %d produced action %T", code, a)
		}
	}
}

// TestCombo_ModifierNeverEmits tests that MODE edges only mutate state.
func TestCombo_ModifierNeverEmits(t *testing.T) {
	c := &comboState{}

	for _, value := range []int32{evValuePress, evValueRepeat, evValueRelease} {
		if a, ok := c.Resolve(evdev.EV_KEY, evdev.BTN_MODE, value); ok {
			t.Errorf("MODE value %d produced action %T", value, a)
		}
	}
	if c.ModifierHeld() {
		t.Error("modifier should not be held after release")
	}
}

// TestCombo_ModifierRedirectsToBrightness tests the two-button combo with
// key repeats: hold MODE, press volume-up, let it repeat, release, then a
// plain press reverts to volume.
func TestCombo_ModifierRedirectsToBrightness(t *testing.T) {
	c := &comboState{}

	c.Resolve(evdev.EV_KEY, evdev.BTN_MODE, evValuePress)
	if !c.ModifierHeld() {
		t.Fatal("modifier should be held after press")
	}

	var got []Action
	seq := []int32{evValuePress, evValueRepeat, evValueRepeat, evValueRelease}
	for _, v := range seq {
		if a, ok := c.Resolve(evdev.EV_KEY, evdev.KEY_VOLUMEUP, v); ok {
			got = append(got, a)
		}
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 actions from press+2 repeats, got %d", len(got))
	}
	for i, a := range got {
		if _, isBright := a.(BrightnessUp); !isBright {
			t.Errorf("action %d: expected BrightnessUp, got %T", i, a)
		}
	}

	c.Resolve(evdev.EV_KEY, evdev.BTN_MODE, evValueRelease)
	a, ok := c.Resolve(evdev.EV_KEY, evdev.KEY_VOLUMEUP, evValuePress)
	if !ok {
		t.Fatal("expected an action after modifier release")
	}
	if _, isUp := a.(VolumeUp); !isUp {
		t.Fatalf("expected VolumeUp after modifier release, got %T", a)
	}
}

// TestCombo_ModifierRepeatDoesNotRelease tests that a MODE key repeat (which
// arrives while the button is still down) does not clear the held state.
func TestCombo_ModifierRepeatDoesNotRelease(t *testing.T) {
	c := &comboState{}

	c.Resolve(evdev.EV_KEY, evdev.BTN_MODE, evValuePress)
	c.Resolve(evdev.EV_KEY, evdev.BTN_MODE, evValueRepeat)
	if !c.ModifierHeld() {
		t.Fatal("modifier repeat must not clear held state")
	}

	a, _ := c.Resolve(evdev.EV_KEY, evdev.KEY_VOLUMEDOWN, evValuePress)
	if _, isBright := a.(BrightnessDown); !isBright {
		t.Fatalf("expected BrightnessDown while modifier held, got %T", a)
	}
}

// TestCombo_JackSwitch tests headphone-jack switch events.
func TestCombo_JackSwitch(t *testing.T) {
	c := &comboState{}

	a, ok := c.Resolve(evdev.EV_SW, evdev.SW_HEADPHONE_INSERT, 1)
	if !ok {
		t.Fatal("expected an action for jack insertion")
	}
	route, isRoute := a.(AudioRoute)
	if !isRoute || !route.Headphones {
		t.Fatalf("expected AudioRoute{Headphones: true}, got %#v", a)
	}

	a, ok = c.Resolve(evdev.EV_SW, evdev.SW_HEADPHONE_INSERT, 0)
	if !ok {
		t.Fatal("expected an action for jack removal")
	}
	route, isRoute = a.(AudioRoute)
	if !isRoute || route.Headphones {
		t.Fatalf("expected AudioRoute{Headphones: false}, got %#v", a)
	}
}

// TestCombo_UnknownEventsIgnored tests that unrelated events pass through
// without producing actions or mutating state.
func TestCombo_UnknownEventsIgnored(t *testing.T) {
	c := &comboState{}

	cases := []struct {
		evType uint16
		code   uint16
		value  int32
	}{
		{evdev.EV_KEY, evdev.BTN_SOUTH, evValuePress},
		{evdev.EV_KEY, evdev.BTN_DPAD_UP, evValuePress},
		{evdev.EV_SYN, 0, 0},
		{evdev.EV_SW, evdev.SW_LID, 1},
	}
	for _, tc := range cases {
		if a, ok := c.Resolve(tc.evType, tc.code, tc.value); ok {
			t.Errorf("event type=%d code=%d produced action %T", tc.evType, tc.code, a)
		}
	}
	if c.ModifierHeld() {
		t.Error("unrelated events must not set the modifier")
	}
}
