package main

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func startTestIPCServer(t *testing.T) (socketPath string, actions chan Action, wakes *atomic.Int32) {
	t.Helper()
	socketPath = filepath.Join(t.TempDir(), "hotkeyd.sock")
	actions = make(chan Action, 8)
	wakes = &atomic.Int32{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runIPCServer(ctx, socketPath, actions, func() { wakes.Add(1) }, testLogger())
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("IPC server did not shut down")
		}
	})

	// Wait for the listener to come up.
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			conn.Close()
			return socketPath, actions, wakes
		}
		if time.Now().After(deadline) {
			t.Fatalf("IPC server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestIPC_RoundTrip tests that a client-sent action lands on the actions
// channel and triggers a loop wakeup.
func TestIPC_RoundTrip(t *testing.T) {
	socketPath, actions, wakes := startTestIPCServer(t)

	if err := SendIPCAction(socketPath, SetBrightness{Percent: 40}); err != nil {
		t.Fatalf("SendIPCAction failed: %v", err)
	}

	select {
	case a := <-actions:
		sb, ok := a.(SetBrightness)
		if !ok || sb.Percent != 40 {
			t.Fatalf("expected SetBrightness{40}, got %#v", a)
		}
	case <-time.After(time.Second):
		t.Fatal("action never arrived")
	}

	if wakes.Load() == 0 {
		t.Error("expected the server to wake the control loop")
	}
}

// TestIPC_MalformedInput tests that bad lines get an error response and do
// not kill the connection.
func TestIPC_MalformedInput(t *testing.T) {
	socketPath, actions, _ := startTestIPCServer(t)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("not json\n")); err != nil {
		t.Fatal(err)
	}
	resp := readLine(t, conn)
	if !strings.Contains(resp, `"error"`) {
		t.Fatalf("expected error response, got %s", resp)
	}

	if _, err := conn.Write([]byte(`{"type":"frobnicate"}` + "\n")); err != nil {
		t.Fatal(err)
	}
	resp = readLine(t, conn)
	if !strings.Contains(resp, "unknown action type") {
		t.Fatalf("expected unknown-type error, got %s", resp)
	}

	// The same connection still accepts valid actions.
	if _, err := conn.Write([]byte(`{"type":"volume_up"}` + "\n")); err != nil {
		t.Fatal(err)
	}
	resp = readLine(t, conn)
	if !strings.Contains(resp, `"ok"`) {
		t.Fatalf("expected ok response, got %s", resp)
	}

	select {
	case a := <-actions:
		if _, ok := a.(VolumeUp); !ok {
			t.Fatalf("expected VolumeUp, got %#v", a)
		}
	case <-time.After(time.Second):
		t.Fatal("valid action never arrived")
	}
}

// TestActionEnvelope_RoundTrip tests marshal/unmarshal symmetry for the
// payload-carrying actions.
func TestActionEnvelope_RoundTrip(t *testing.T) {
	for _, a := range []Action{AudioRoute{Headphones: true}, SetBrightness{Percent: 73}, VolumeDown{}} {
		data, err := MarshalAction(a)
		if err != nil {
			t.Fatalf("marshal %T: %v", a, err)
		}
		back, err := UnmarshalAction(data)
		if err != nil {
			t.Fatalf("unmarshal %T: %v", a, err)
		}
		if back != a {
			t.Errorf("round trip changed %#v to %#v", a, back)
		}
	}
}

func readLine(t *testing.T, conn net.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	return string(buf[:n])
}
