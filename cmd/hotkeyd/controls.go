package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// ============================================================================
// External control collaborators
// ============================================================================
// The dispatcher depends on these narrow interfaces so its clamping and
// idempotence logic can be unit-tested with fakes. The concrete
// implementations shell out to amixer/brightnessctl the way the stock
// firmware does; every invocation is bounded by the caller's context.
// ============================================================================

// GainControl adjusts the output gain by a relative percentage step.
// The underlying mixer saturates at its own bounds; an adjustment at a bound
// is a harmless no-op, not an error.
type GainControl interface {
	AdjustPercent(ctx context.Context, deltaPct int) error
}

// BacklightControl reads and adjusts the screen backlight as a percentage.
type BacklightControl interface {
	CurrentPercent(ctx context.Context) (int, error)
	StepPercent(ctx context.Context, deltaPct int) error
	SetPercent(ctx context.Context, pct int) error
}

// RouteControl selects the audio output path.
type RouteControl interface {
	Select(ctx context.Context, headphones bool) error
}

// BrightnessStore persists the last-set brightness percentage. The daemon
// only ever writes it; it is read back at boot by external tooling.
type BrightnessStore interface {
	Save(pct int) error
}

// ----------------------------------------------------------------------------
// ALSA mixer gain
// ----------------------------------------------------------------------------

type amixerGain struct {
	control string
}

func newAmixerGain(control string) *amixerGain {
	return &amixerGain{control: control}
}

func (g *amixerGain) AdjustPercent(ctx context.Context, deltaPct int) error {
	var arg string
	if deltaPct >= 0 {
		arg = fmt.Sprintf("%d%%+", deltaPct)
	} else {
		arg = fmt.Sprintf("%d%%-", -deltaPct)
	}
	cmd := exec.CommandContext(ctx, "amixer", "-q", "sset", g.control, arg)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("amixer sset %q %s: %w (%s)", g.control, arg, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ----------------------------------------------------------------------------
// ALSA mixer output routing
// ----------------------------------------------------------------------------

type amixerRoute struct {
	control   string
	headphone string
	speaker   string
}

func newAmixerRoute(control, headphone, speaker string) *amixerRoute {
	return &amixerRoute{control: control, headphone: headphone, speaker: speaker}
}

func (r *amixerRoute) Select(ctx context.Context, headphones bool) error {
	value := r.speaker
	if headphones {
		value = r.headphone
	}
	cmd := exec.CommandContext(ctx, "amixer", "-q", "sset", r.control, value)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("amixer sset %q %s: %w (%s)", r.control, value, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ----------------------------------------------------------------------------
// Backlight: sysfs reads, brightnessctl writes
// ----------------------------------------------------------------------------

type sysfsBacklight struct {
	dir string
}

func newSysfsBacklight(dir string) *sysfsBacklight {
	return &sysfsBacklight{dir: dir}
}

func (b *sysfsBacklight) readInt(name string) (int, error) {
	raw, err := os.ReadFile(filepath.Join(b.dir, name))
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}

func (b *sysfsBacklight) CurrentPercent(ctx context.Context) (int, error) {
	cur, err := b.readInt("brightness")
	if err != nil {
		return 0, fmt.Errorf("read brightness: %w", err)
	}
	max, err := b.readInt("max_brightness")
	if err != nil {
		return 0, fmt.Errorf("read max_brightness: %w", err)
	}
	if max <= 0 {
		return 0, fmt.Errorf("max_brightness is %d", max)
	}
	return cur * 100 / max, nil
}

func (b *sysfsBacklight) StepPercent(ctx context.Context, deltaPct int) error {
	var arg string
	if deltaPct >= 0 {
		arg = fmt.Sprintf("+%d%%", deltaPct)
	} else {
		arg = fmt.Sprintf("%d%%-", -deltaPct)
	}
	cmd := exec.CommandContext(ctx, "brightnessctl", "-q", "s", arg)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("brightnessctl s %s: %w (%s)", arg, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (b *sysfsBacklight) SetPercent(ctx context.Context, pct int) error {
	arg := fmt.Sprintf("%d%%", pct)
	cmd := exec.CommandContext(ctx, "brightnessctl", "-q", "s", arg)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("brightnessctl s %s: %w (%s)", arg, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ----------------------------------------------------------------------------
// Brightness persistence
// ----------------------------------------------------------------------------

// fileBrightnessStore writes the percentage as a bare textual integer so the
// boot-time restore script can read it without any parsing machinery.
type fileBrightnessStore struct {
	path string
}

func newFileBrightnessStore(path string) *fileBrightnessStore {
	return &fileBrightnessStore{path: ExpandPath(path)}
}

func (f *fileBrightnessStore) Save(pct int) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(strconv.Itoa(pct)), 0o644); err != nil {
		return fmt.Errorf("write brightness record: %w", err)
	}
	return nil
}
