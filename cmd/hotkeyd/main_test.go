package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func retryTestConfig(t *testing.T, attempts int) Config {
	t.Helper()
	cfg := DefaultConfig()
	// A glob over an empty temp dir matches nothing, so discovery never
	// finds the volume-key device.
	cfg.Input.DeviceGlob = filepath.Join(t.TempDir(), "event*")
	cfg.Input.RetryAttempts = attempts
	cfg.Input.RetryIntervalMS = 1
	return cfg
}

// TestWaitForSources_GivesUpWithoutVolumeDevice tests that exhausting the
// retry window without the mandatory volume-key device is fatal.
func TestWaitForSources_GivesUpWithoutVolumeDevice(t *testing.T) {
	cfg := retryTestConfig(t, 3)

	start := time.Now()
	sources, err := waitForSources(context.Background(), cfg, testLogger())
	if err == nil {
		t.Fatal("expected a fatal error when the volume device never appears")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("retry exhaustion must not look like cancellation: %v", err)
	}
	if sources != nil {
		t.Errorf("expected no sources, got %d", len(sources))
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("retry window overran: %v", elapsed)
	}
}

// TestWaitForSources_CanceledDuringRetry tests that a termination signal
// stops the retry loop instead of waiting out the remaining attempts.
func TestWaitForSources_CanceledDuringRetry(t *testing.T) {
	cfg := retryTestConfig(t, 1000)
	cfg.Input.RetryIntervalMS = 60_000

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := waitForSources(ctx, cfg, testLogger())
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("cancellation did not stop the retry loop")
	}
}

// TestRun_ShutdownDuringStartupExitsCleanly tests that a signal arriving
// while the daemon is still waiting for devices is a clean shutdown, not a
// failure.
func TestRun_ShutdownDuringStartupExitsCleanly(t *testing.T) {
	cfg := retryTestConfig(t, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := run(ctx, cfg, testLogger()); err != nil {
		t.Fatalf("expected clean shutdown during startup, got %v", err)
	}
}
