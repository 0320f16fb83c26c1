// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux || darwin || freebsd || netbsd || openbsd

package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/lib/testutil"
)

// openTarget returns a file whose descriptor stands in for stderr.
func openTarget(t *testing.T) (*os.File, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stderr.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		t.Fatalf("opening target: %v", err)
	}
	t.Cleanup(func() { file.Close() })
	return file, path
}

func TestLogForwarderCapturesAndEchoes(t *testing.T) {
	target, path := openTarget(t)
	forwarder := NewLogForwarder(int(target.Fd()), discardLogger())
	session := newRecordingSession()
	forwarder.OnRegistered(session)

	forwarder.OnEventReceived(event.NewControl(CommandLogForwarding, map[string]any{"enable": true}))
	if !forwarder.Running() {
		t.Fatal("forwarder not running after enable")
	}
	if _, err := target.WriteString("plain line\n\x1b[31mred line\x1b[0m\n"); err != nil {
		t.Fatalf("writing to target: %v", err)
	}

	forwarder.OnEventReceived(event.NewControl(CommandLogForwarding, map[string]any{"enable": false}))
	if forwarder.Running() {
		t.Fatal("forwarder still running after disable")
	}

	for _, want := range []string{"plain line", "red line"} {
		got := testutil.RequireReceive(t, session.events, testTimeout, "log event %q", want)
		if got.Type != LogEventType || got.Payload["logline"] != want {
			t.Errorf("log event = %s %v, want logline %q", got.Type, got.Payload, want)
		}
	}

	echoed, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading target: %v", err)
	}
	if want := "plain line\n\x1b[31mred line\x1b[0m\n"; string(echoed) != want {
		t.Errorf("original destination got %q, want %q", echoed, want)
	}

	// Writes after Stop go straight to the file.
	target.WriteString("after\n")
	testutil.RequireNoReceive(t, session.events, quietWindow, "event after stop")
}

func TestLogForwarderIdempotent(t *testing.T) {
	target, _ := openTarget(t)
	forwarder := NewLogForwarder(int(target.Fd()), discardLogger())
	forwarder.OnRegistered(newRecordingSession())

	if err := forwarder.Stop(); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	for range 2 {
		if err := forwarder.Start(); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}
	for range 2 {
		if err := forwarder.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
	}
	if forwarder.Running() {
		t.Fatal("forwarder running after Stop")
	}
}

func TestLogForwarderStopsOnTermination(t *testing.T) {
	target, _ := openTarget(t)
	forwarder := NewLogForwarder(int(target.Fd()), discardLogger())
	if err := forwarder.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	forwarder.OnSessionTerminated()
	if forwarder.Running() {
		t.Fatal("forwarder running after session termination")
	}
}
