package main

import (
	"context"
	"log/slog"
	"time"
)

// dispatcher translates a resolved logical action into one external control
// invocation. It owns the brightness floor policy and the persisted
// brightness record.
//
// Failure policy: every collaborator call may fail transiently; failures are
// logged and swallowed. A failed cosmetic action must never crash or stall
// the daemon. Each Apply is time-boxed so a hung collaborator cannot freeze
// event processing.
type dispatcher struct {
	gain      GainControl
	backlight BacklightControl
	route     RouteControl
	store     BrightnessStore

	volStep     int
	brightStep  int
	brightFloor int

	actionTimeout time.Duration

	logger *slog.Logger

	// Last-applied values, kept for state snapshots only.
	brightnessPct   int
	brightnessKnown bool
	headphones      bool
	routeKnown      bool
}

func newDispatcher(gain GainControl, backlight BacklightControl, route RouteControl, store BrightnessStore, cfg Config, logger *slog.Logger) *dispatcher {
	return &dispatcher{
		gain:          gain,
		backlight:     backlight,
		route:         route,
		store:         store,
		volStep:       cfg.Audio.VolStepPct,
		brightStep:    cfg.Backlight.StepPct,
		brightFloor:   cfg.Backlight.FloorPct,
		actionTimeout: defaultActionTimeoutMS * time.Millisecond,
		logger:        logger,
	}
}

// Apply performs the side effect for one action. It never returns an error;
// log-and-continue is the whole contract.
func (d *dispatcher) Apply(ctx context.Context, a Action) {
	ctx, cancel := context.WithTimeout(ctx, d.actionTimeout)
	defer cancel()

	switch a := a.(type) {
	case VolumeUp:
		if err := d.gain.AdjustPercent(ctx, d.volStep); err != nil {
			d.logger.Warn("volume up failed", "error", err)
		}

	case VolumeDown:
		if err := d.gain.AdjustPercent(ctx, -d.volStep); err != nil {
			d.logger.Warn("volume down failed", "error", err)
		}

	case BrightnessUp:
		if err := d.backlight.StepPercent(ctx, d.brightStep); err != nil {
			d.logger.Warn("brightness up failed", "error", err)
			return
		}
		d.persistBrightness(ctx)

	case BrightnessDown:
		d.brightnessDown(ctx)

	case SetBrightness:
		pct := a.Percent
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		if err := d.backlight.SetPercent(ctx, pct); err != nil {
			d.logger.Warn("brightness set failed", "percent", pct, "error", err)
			return
		}
		d.persistBrightness(ctx)

	case AudioRoute:
		if err := d.route.Select(ctx, a.Headphones); err != nil {
			d.logger.Warn("audio route switch failed", "headphones", a.Headphones, "error", err)
			return
		}
		d.headphones = a.Headphones
		d.routeKnown = true

	default:
		d.logger.Warn("unknown action", "action", a)
	}
}

// brightnessDown lowers the backlight with the floor guard.
//
// Two-phase clamp: the relative step may overshoot the floor, so after
// stepping we re-read and correct up to exactly the floor. If the level is
// already at or below the floor this is a no-op (protects against a fully
// black screen).
func (d *dispatcher) brightnessDown(ctx context.Context) {
	cur, err := d.backlight.CurrentPercent(ctx)
	if err != nil {
		d.logger.Warn("brightness read failed", "error", err)
		return
	}
	if cur <= d.brightFloor {
		return
	}

	if err := d.backlight.StepPercent(ctx, -d.brightStep); err != nil {
		d.logger.Warn("brightness down failed", "error", err)
		return
	}

	cur, err = d.backlight.CurrentPercent(ctx)
	if err != nil {
		d.logger.Warn("brightness read failed", "error", err)
		return
	}
	if cur < d.brightFloor {
		if err := d.backlight.SetPercent(ctx, d.brightFloor); err != nil {
			d.logger.Warn("brightness clamp failed", "error", err)
			return
		}
	}
	d.persistBrightness(ctx)
}

// persistBrightness records the current level after a successful change.
func (d *dispatcher) persistBrightness(ctx context.Context) {
	cur, err := d.backlight.CurrentPercent(ctx)
	if err != nil {
		d.logger.Warn("brightness read failed", "error", err)
		return
	}
	d.brightnessPct = cur
	d.brightnessKnown = true
	if err := d.store.Save(cur); err != nil {
		d.logger.Warn("brightness persist failed", "error", err)
	}
}
