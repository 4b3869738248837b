package main

// Input event value field for EV_KEY events.
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Hotkey defaults. These mirror the handheld's stock behavior and can all be
// overridden from the config file.
const (
	defaultVolStepPct    = 2 // volume change per key press (%)
	defaultBrightStepPct = 3 // brightness change per key press (%)
	defaultBrightMinPct  = 5 // brightness floor, prevents a black screen (%)

	// ALSA controls on the rk817 BSP codec. "Playback Path" is an enum
	// (SPK/HP/OFF), not a level; "DAC Playback Volume" is the actual level.
	defaultVolumeControl = "DAC Playback Volume"
	defaultRouteControl  = "Playback Path"

	defaultHeadphoneValue = "HP"
	defaultSpeakerValue   = "SPK"

	defaultDeviceGlob = "/dev/input/event*"
	defaultNameFamily = "gpio-keys"

	defaultBacklightDir = "/sys/class/backlight/backlight"

	// Startup retry window for the mandatory volume-key device.
	defaultRetryAttempts   = 30
	defaultRetryIntervalMS = 1000

	// Idle multiplexer timeout; gives the loop a periodic chance to run
	// housekeeping even when no source is ready.
	defaultWaitTimeoutMS = 2000

	// Every external control invocation is time-boxed so a wedged amixer or
	// brightnessctl cannot stall event processing indefinitely.
	defaultActionTimeoutMS = 5000
)
