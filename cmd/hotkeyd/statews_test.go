package main

import (
	"context"
	"strings"
	"testing"
	"time"
)

// TestWSHub_ShutdownUnblocksDisconnect tests that a client disconnecting
// after the hub has stopped does not hang, even with the unregister buffer
// already full.
func TestWSHub_ShutdownUnblocksDisconnect(t *testing.T) {
	hub := newWSHub(testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(runDone)
	}()

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop on cancel")
	}

	// Nobody drains unregister anymore; saturate its buffer.
	for i := 0; i < cap(hub.unregister); i++ {
		hub.unregister <- &wsClient{hub: hub}
	}

	done := make(chan struct{})
	go func() {
		c := &wsClient{hub: hub}
		c.disconnect()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect blocked on a stopped hub")
	}
}

// TestWSHub_PublishUpdatesLastSnapshot tests that connect-time replay state
// tracks the most recent publish.
func TestWSHub_PublishUpdatesLastSnapshot(t *testing.T) {
	hub := newWSHub(testLogger())

	hub.Publish(StateSnapshot{BrightnessPct: 30, BrightnessKnown: true})
	hub.Publish(StateSnapshot{BrightnessPct: 33, BrightnessKnown: true})

	hub.mu.Lock()
	last := string(hub.last)
	hub.mu.Unlock()

	if last == "" {
		t.Fatal("expected a stored snapshot after publish")
	}
	if want := `"brightness_pct":33`; !strings.Contains(last, want) {
		t.Errorf("expected last snapshot to contain %s, got %s", want, last)
	}
	if got := len(hub.broadcast); got != 2 {
		t.Errorf("expected 2 queued broadcasts, got %d", got)
	}
}
