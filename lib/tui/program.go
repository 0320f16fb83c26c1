// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bureau-foundation/inspect/handshake"
	"github.com/bureau-foundation/inspect/transport"
)

// sendBacklog bounds messages queued before the event loop runs.
const sendBacklog = 256

// Program runs an App and adapts it to the session interfaces. Its
// methods may be called from any goroutine, before or during Run.
// Messages are queued in order and delivered once the event loop is
// running; after Run returns they are discarded.
type Program struct {
	program *tea.Program
	views   *viewCache
	queue   chan tea.Msg
	done    chan struct{}
}

// NewProgram creates a Program for config. Options are passed to
// tea.NewProgram.
func NewProgram(config AppConfig, options ...tea.ProgramOption) *Program {
	app := NewApp(config)
	return &Program{
		program: tea.NewProgram(app, options...),
		views:   app.views,
		queue:   make(chan tea.Msg, sendBacklog),
		done:    make(chan struct{}),
	}
}

// Run blocks until the user quits or Quit is called. It must be
// called at most once.
func (p *Program) Run() error {
	defer close(p.done)
	go p.forward()
	_, err := p.program.Run()
	return err
}

// forward hands queued messages to the event loop.
func (p *Program) forward() {
	for {
		select {
		case message := <-p.queue:
			p.program.Send(message)
		case <-p.done:
			return
		}
	}
}

// Done is closed when Run returns.
func (p *Program) Done() <-chan struct{} {
	return p.done
}

// Quit asks the program to exit after queued messages are handled.
func (p *Program) Quit() {
	p.Send(tea.QuitMsg{})
}

// Send queues a message for the model. It blocks only while the
// backlog is full.
func (p *Program) Send(message tea.Msg) {
	select {
	case p.queue <- message:
	case <-p.done:
	}
}

// StatusChanged updates the status indicator.
func (p *Program) StatusChanged(state transport.State) {
	p.Send(statusMsg{state: state})
}

// ShowError shows err in the error banner.
func (p *Program) ShowError(err *transport.ConnectionError) {
	p.Send(errorMsg{err: err})
}

// SessionTerminated marks the session as ended.
func (p *Program) SessionTerminated() {
	p.Send(terminatedMsg{})
}

// PromptPIN opens the PIN modal and waits for the user. Dismissing the
// modal or quitting returns handshake.ErrCancelled.
func (p *Program) PromptPIN(ctx context.Context) (string, error) {
	reply := make(chan pinResult, 1)
	p.Send(pinRequestMsg{reply: reply})

	select {
	case result := <-reply:
		if result.cancelled {
			return "", handshake.ErrCancelled
		}
		return result.pin, nil
	case <-ctx.Done():
		p.Send(pinDismissMsg{reply: reply})
		return "", ctx.Err()
	case <-p.done:
		return "", handshake.ErrCancelled
	}
}

// Snapshot returns the most recently rendered frame.
func (p *Program) Snapshot() string {
	return p.views.load()
}
