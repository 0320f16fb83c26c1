// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"log/slog"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

type recordingSender struct {
	mutex sync.Mutex
	lines []string
}

func (sender *recordingSender) Send(message tea.Msg) {
	line, ok := message.(logLineMsg)
	if !ok {
		return
	}
	sender.mutex.Lock()
	sender.lines = append(sender.lines, line.line)
	sender.mutex.Unlock()
}

func TestLogHandlerSendsLines(t *testing.T) {
	sender := &recordingSender{}
	logger := slog.New(NewLogHandler(sender, slog.LevelInfo)).With("component", "session")

	logger.Debug("hidden")
	logger.Info("channel open", "code", 1000)

	if len(sender.lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(sender.lines), sender.lines)
	}
	line := sender.lines[0]
	for _, want := range []string{"level=INFO", `msg="channel open"`, "component=session", "code=1000"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	if strings.Contains(line, "time=") {
		t.Errorf("line %q carries a timestamp", line)
	}
}

func TestLogHandlerGroups(t *testing.T) {
	sender := &recordingSender{}
	logger := slog.New(NewLogHandler(sender, slog.LevelDebug)).WithGroup("upload")
	logger.Debug("done", "bytes", 12)

	if len(sender.lines) != 1 || !strings.Contains(sender.lines[0], "upload.bytes=12") {
		t.Fatalf("lines = %q, want one containing upload.bytes=12", sender.lines)
	}
}
