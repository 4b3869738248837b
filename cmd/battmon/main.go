package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ============================================================================
// battmon - Battery LED Monitor
// ============================================================================
// Companion daemon that mirrors the battery state onto the console's two
// bi-color status LEDs via sysfs GPIO:
//
//   Charging       pink (red + blue), poll every 5s
//   capacity > 20  blue, poll every 30s
//   capacity > 10  solid red, poll every 10s
//   otherwise      blinking red, 0.5s on / 0.5s off
//
// Each LED color drives two GPIO lines because clone boards wire the LEDs
// differently; writing both covers the known variants.
// ============================================================================

const (
	defaultCapacityPath = "/sys/class/power_supply/battery/capacity"
	defaultStatusPath   = "/sys/class/power_supply/battery/status"
	defaultGpioBase     = "/sys/class/gpio"
)

var ledGpios = map[string][]string{
	"red":  {"gpio12", "gpio17"},
	"blue": {"gpio0", "gpio11"},
}

type ledController struct {
	gpioBase string
	logger   *slog.Logger
}

// setupGpio exports a GPIO and sets it as an output. Failures are reported
// but not fatal: a clone with different wiring still works on the lines that
// do exist.
func (l *ledController) setupGpio(num string) error {
	gpioPath := filepath.Join(l.gpioBase, "gpio"+num)
	if _, err := os.Stat(gpioPath); os.IsNotExist(err) {
		if err := os.WriteFile(filepath.Join(l.gpioBase, "export"), []byte(num), 0o200); err != nil {
			return fmt.Errorf("export gpio%s: %w", num, err)
		}
	}
	directionPath := filepath.Join(gpioPath, "direction")
	if _, err := os.Stat(directionPath); err == nil {
		if err := os.WriteFile(directionPath, []byte("out"), 0o644); err != nil {
			return fmt.Errorf("set gpio%s direction: %w", num, err)
		}
	}
	return nil
}

// set drives all GPIO lines of one LED color. Missing lines are skipped.
func (l *ledController) set(color string, on bool) {
	value := "0"
	if on {
		value = "1"
	}
	for _, gpio := range ledGpios[color] {
		valuePath := filepath.Join(l.gpioBase, gpio, "value")
		if _, err := os.Stat(valuePath); err != nil {
			continue
		}
		if err := os.WriteFile(valuePath, []byte(value), 0o644); err != nil {
			l.logger.Debug("led write failed", "gpio", gpio, "error", err)
		}
	}
}

func (l *ledController) allOff() {
	l.set("red", false)
	l.set("blue", false)
}

type batteryReader struct {
	capacityPath string
	statusPath   string
}

func (b *batteryReader) read() (capacity int, status string, err error) {
	raw, err := os.ReadFile(b.capacityPath)
	if err != nil {
		return 0, "", fmt.Errorf("read capacity: %w", err)
	}
	capacity, err = strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, "", fmt.Errorf("parse capacity: %w", err)
	}

	raw, err = os.ReadFile(b.statusPath)
	if err != nil {
		return 0, "", fmt.Errorf("read status: %w", err)
	}
	return capacity, strings.TrimSpace(string(raw)), nil
}

// ledPhase is one LED state with a hold time before the next evaluation.
type ledPhase struct {
	red, blue bool
	hold      time.Duration
}

// phasesFor maps a battery reading onto the LED sequence for one cycle.
func phasesFor(capacity int, status string) []ledPhase {
	switch {
	case status == "Charging":
		return []ledPhase{{red: true, blue: true, hold: 5 * time.Second}}
	case capacity > 20:
		return []ledPhase{{blue: true, hold: 30 * time.Second}}
	case capacity > 10:
		return []ledPhase{{red: true, hold: 10 * time.Second}}
	default:
		// Critical: one blink per cycle
		return []ledPhase{
			{red: true, hold: 500 * time.Millisecond},
			{hold: 500 * time.Millisecond},
		}
	}
}

func run(ctx context.Context, leds *ledController, batt *batteryReader, logger *slog.Logger) {
	for _, num := range []string{"0", "11", "12", "17"} {
		if err := leds.setupGpio(num); err != nil {
			logger.Warn("gpio setup failed", "gpio", num, "error", err)
		}
	}

	var lastStatus string
	var lastLevel int = -1

	for {
		capacity, status, err := batt.read()
		if err != nil {
			// Battery interface missing or not ready yet; try again later.
			logger.Debug("battery read failed", "error", err)
			if !sleepCtx(ctx, 10*time.Second) {
				return
			}
			continue
		}

		if status != lastStatus || capacity != lastLevel {
			logger.Info("battery", "capacity", capacity, "status", status)
			lastStatus = status
			lastLevel = capacity
		}

		for _, p := range phasesFor(capacity, status) {
			leds.set("red", p.red)
			leds.set("blue", p.blue)
			if !sleepCtx(ctx, p.hold) {
				return
			}
		}
	}
}

// sleepCtx sleeps for d, returning false if ctx was canceled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func main() {
	var (
		capacityPath = flag.String("capacity-path", defaultCapacityPath, "Battery capacity sysfs file")
		statusPath   = flag.String("status-path", defaultStatusPath, "Battery status sysfs file")
		gpioBase     = flag.String("gpio-base", defaultGpioBase, "Sysfs GPIO base directory")
		logLevelStr  = flag.String("log-level", "info", "Log level: error, warn, info, debug")
	)
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevelStr)); err != nil {
		fmt.Fprintln(os.Stderr, "error: invalid log level:", *logLevelStr)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	leds := &ledController{gpioBase: *gpioBase, logger: logger}
	batt := &batteryReader{capacityPath: *capacityPath, statusPath: *statusPath}

	logger.Info("battmon starting", "capacity_path", *capacityPath, "status_path", *statusPath)
	run(ctx, leds, batt, logger)
	leds.allOff()
	logger.Info("battmon stopped")
}
