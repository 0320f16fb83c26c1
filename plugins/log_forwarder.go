// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/plugin"
)

// maxLogLine bounds one forwarded line. Longer lines are split.
const maxLogLine = 64 << 10

// LogForwarder answers logForwarding commands ({"enable": bool}) by
// redirecting a file descriptor (stderr by default) into a pipe. Each
// line read from the pipe is written to the descriptor's original
// destination and sent to the console as a log event with ANSI
// styling stripped. Start and Stop are idempotent.
//
// The redirection is process-wide: everything that writes to the
// descriptor, including the Go runtime and slog handlers bound to
// os.Stderr, is captured.
type LogForwarder struct {
	plugin.Base
	targetFD int
	logger   *slog.Logger

	mutex    sync.Mutex
	session  plugin.Session
	running  bool
	original *os.File
	done     chan struct{}
}

// NewLogForwarder creates the plugin for targetFD; a negative value
// means stderr.
func NewLogForwarder(targetFD int, logger *slog.Logger) *LogForwarder {
	if targetFD < 0 {
		targetFD = int(os.Stderr.Fd())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogForwarder{targetFD: targetFD, logger: logger.With("plugin", CommandLogForwarding)}
}

func (p *LogForwarder) Vendor() string      { return event.ControlVendor }
func (p *LogForwarder) CommandType() string { return CommandLogForwarding }

func (p *LogForwarder) OnRegistered(session plugin.Session) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.session = session
}

func (p *LogForwarder) OnEventReceived(e event.Event) {
	enable, ok := e.Detail()["enable"].(bool)
	if !ok {
		p.logger.Warn("log forwarding command without enable flag", "event_id", e.ID)
		return
	}
	var err error
	if enable {
		err = p.Start()
	} else {
		err = p.Stop()
	}
	if err != nil {
		p.logger.Error("log forwarding toggle failed", "enable", enable, "error", err)
	}
}

// OnSessionTerminated restores the descriptor.
func (p *LogForwarder) OnSessionTerminated() {
	if err := p.Stop(); err != nil {
		p.logger.Error("stopping log forwarding", "error", err)
	}
}

// Running reports whether the descriptor is currently redirected.
func (p *LogForwarder) Running() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.running
}

// Start redirects the descriptor. It does nothing if already running.
func (p *LogForwarder) Start() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.running {
		return nil
	}

	saved, err := duplicateFD(p.targetFD)
	if err != nil {
		return fmt.Errorf("saving descriptor %d: %w", p.targetFD, err)
	}
	reader, writer, err := os.Pipe()
	if err != nil {
		closeFD(saved)
		return fmt.Errorf("creating pipe: %w", err)
	}
	if err := redirectFD(int(writer.Fd()), p.targetFD); err != nil {
		reader.Close()
		writer.Close()
		closeFD(saved)
		return fmt.Errorf("redirecting descriptor %d: %w", p.targetFD, err)
	}
	// The target descriptor now holds the only reference to the pipe's
	// write end, so restoring it in Stop delivers EOF to the reader.
	writer.Close()

	p.original = os.NewFile(uintptr(saved), "original")
	p.done = make(chan struct{})
	p.running = true
	go p.forward(reader, p.original, p.session, p.done)
	return nil
}

// Stop restores the descriptor and waits until every captured line
// has been forwarded. It does nothing if not running.
func (p *LogForwarder) Stop() error {
	p.mutex.Lock()
	if !p.running {
		p.mutex.Unlock()
		return nil
	}
	p.running = false
	original, done := p.original, p.done
	p.original, p.done = nil, nil
	p.mutex.Unlock()

	err := redirectFD(int(original.Fd()), p.targetFD)
	if err != nil {
		err = fmt.Errorf("restoring descriptor %d: %w", p.targetFD, err)
	}
	<-done
	original.Close()
	return err
}

// forward copies lines from the pipe to the original destination and
// the console. It must not log per line: the logger may itself write
// to the captured descriptor.
func (p *LogForwarder) forward(reader *os.File, original *os.File, session plugin.Session, done chan<- struct{}) {
	defer close(done)
	defer reader.Close()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 4096), maxLogLine)
	scanner.Split(scanLinesOrFull)
	for scanner.Scan() {
		line := scanner.Text()
		original.WriteString(line + "\n")
		if session != nil {
			session.Send(event.New(event.ControlVendor, LogEventType, map[string]any{
				"logline": ansi.Strip(line),
			}))
		}
	}
}

// scanLinesOrFull is bufio.ScanLines, except that a line longer than
// the buffer is emitted in pieces instead of failing the scan.
func scanLinesOrFull(data []byte, atEOF bool) (int, []byte, error) {
	advance, token, err := bufio.ScanLines(data, atEOF)
	if advance == 0 && token == nil && err == nil && len(data) >= maxLogLine {
		return len(data), data, nil
	}
	return advance, token, err
}
