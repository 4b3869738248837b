package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Control Loop
// ============================================================================
// One goroutine owns all mutable daemon state. It blocks in the multiplexer,
// drains every ready source completely, resolves raw events into actions,
// applies them, then picks up any actions injected over IPC. Auxiliary
// goroutines (IPC server, WS hub) never touch combo or dispatcher state
// directly; they communicate through the actions channel and the eventfd.
// ============================================================================

type daemon struct {
	mux   *multiplexer
	combo *comboState
	disp  *dispatcher

	// actions carries IPC-injected actions into the loop.
	actions chan Action

	// hub is nil when the state WebSocket is disabled.
	hub *wsHub

	waitTimeout time.Duration
	logger      *slog.Logger

	lastSnapshot  StateSnapshot
	snapshotValid bool
}

func newDaemon(mux *multiplexer, disp *dispatcher, actions chan Action, hub *wsHub, cfg Config, logger *slog.Logger) *daemon {
	return &daemon{
		mux:         mux,
		combo:       &comboState{},
		disp:        disp,
		actions:     actions,
		hub:         hub,
		waitTimeout: time.Duration(cfg.Input.WaitTimeoutMS) * time.Millisecond,
		logger:      logger,
	}
}

// run processes input until ctx is canceled.
//
// A failing source is dropped and the loop keeps going with whatever remains,
// including the case where the volume device itself disappears (USB-style
// hotplug, driver rebind). Even with zero sources left the loop stays alive
// to serve IPC actions.
func (d *daemon) run(ctx context.Context) error {
	d.logger.Info("control loop started", "wait_timeout", d.waitTimeout)

	for {
		if ctx.Err() != nil {
			d.logger.Info("control loop stopping")
			return nil
		}

		ready, _, err := d.mux.wait(d.waitTimeout)
		if err != nil {
			return err
		}

		for _, s := range ready {
			d.drainSource(ctx, s)
		}

		d.drainIPC(ctx)
		d.publishSnapshot()
	}
}

// drainSource reads all buffered events from one ready source and applies
// the resulting actions in arrival order.
func (d *daemon) drainSource(ctx context.Context, s *source) {
	events, err := s.read()
	if err != nil {
		// Disconnect or driver error. Drop the source; the loop
		// continues with the remaining ones.
		d.logger.Warn("input source lost", "role", s.role.String(), "path", s.path, "error", err)
		d.mux.drop(s)
		if d.mux.empty() {
			d.logger.Warn("no input sources left, serving IPC only")
		}
		return
	}

	for _, ev := range events {
		a, ok := d.combo.Resolve(ev.Type, ev.Code, ev.Value)
		if !ok {
			continue
		}
		d.logger.Debug("action", "source", s.role.String(), "action", actionType(a))
		d.disp.Apply(ctx, a)
	}
}

// drainIPC applies any actions queued by the IPC server since the last wake,
// without blocking.
func (d *daemon) drainIPC(ctx context.Context) {
	for {
		select {
		case a := <-d.actions:
			d.logger.Debug("action", "source", "ipc", "action", actionType(a))
			d.disp.Apply(ctx, a)
		default:
			return
		}
	}
}

// publishSnapshot broadcasts the daemon state to WS clients when it changed.
func (d *daemon) publishSnapshot() {
	if d.hub == nil {
		return
	}

	snap := StateSnapshot{
		BrightnessPct:   d.disp.brightnessPct,
		BrightnessKnown: d.disp.brightnessKnown,
		Headphones:      d.disp.headphones,
		RouteKnown:      d.disp.routeKnown,
		ModifierHeld:    d.combo.ModifierHeld(),
	}
	if d.snapshotValid && snap == d.lastSnapshot {
		return
	}
	d.lastSnapshot = snap
	d.snapshotValid = true
	d.hub.Publish(snap)
}
