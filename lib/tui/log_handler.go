// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// MessageSender is the part of a bubbletea program the log handler
// needs. Both *Program and *tea.Program satisfy it; a bare
// *tea.Program blocks logging until its event loop is running.
type MessageSender interface {
	Send(message tea.Msg)
}

// LogHandler is a slog.Handler that formats records as text and shows
// each one as a line in the log pane.
type LogHandler struct {
	text   slog.Handler
	buffer *lineBuffer
}

// lineBuffer collects one formatted record and forwards it as log
// lines. The mutex spans format and flush so records never interleave.
type lineBuffer struct {
	mutex  sync.Mutex
	bytes  bytes.Buffer
	sender MessageSender
}

func (buffer *lineBuffer) Write(data []byte) (int, error) {
	return buffer.bytes.Write(data)
}

func (buffer *lineBuffer) flush() {
	text := strings.TrimRight(buffer.bytes.String(), "\n")
	buffer.bytes.Reset()
	for _, line := range strings.Split(text, "\n") {
		buffer.sender.Send(logLineMsg{line: line})
	}
}

// NewLogHandler creates a handler that writes records at level and
// above to sender. Timestamps are omitted; the pane is live.
func NewLogHandler(sender MessageSender, level slog.Leveler) *LogHandler {
	buffer := &lineBuffer{sender: sender}
	return &LogHandler{
		text: slog.NewTextHandler(buffer, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if len(groups) == 0 && attr.Key == slog.TimeKey {
					return slog.Attr{}
				}
				return attr
			},
		}),
		buffer: buffer,
	}
}

func (handler *LogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return handler.text.Enabled(ctx, level)
}

func (handler *LogHandler) Handle(ctx context.Context, record slog.Record) error {
	handler.buffer.mutex.Lock()
	defer handler.buffer.mutex.Unlock()
	if err := handler.text.Handle(ctx, record); err != nil {
		handler.buffer.bytes.Reset()
		return err
	}
	handler.buffer.flush()
	return nil
}

func (handler *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &LogHandler{text: handler.text.WithAttrs(attrs), buffer: handler.buffer}
}

func (handler *LogHandler) WithGroup(name string) slog.Handler {
	return &LogHandler{text: handler.text.WithGroup(name), buffer: handler.buffer}
}
