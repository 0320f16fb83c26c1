// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/inspect/lib/clock"
	"github.com/bureau-foundation/inspect/transport"
)

const (
	// maxConnectRetries bounds automatic retries after retryable
	// errors. The count resets once a connection opens.
	maxConnectRetries = 3

	retryDelay = 2 * time.Second
)

// terminalPresenter reports session status through the logger when the
// status view is not in use. Retryable errors are retried after a
// delay since there is no one to press a retry key.
type terminalPresenter struct {
	logger *slog.Logger
	clock  clock.Clock

	// retry and terminate are set once the controller exists.
	retry     func()
	terminate func()

	// retries is only touched from the controller's presenter
	// goroutine.
	retries int

	terminated chan struct{}
	once       sync.Once
}

func newTerminalPresenter(logger *slog.Logger, clk clock.Clock) *terminalPresenter {
	return &terminalPresenter{
		logger:     logger,
		clock:      clk,
		terminated: make(chan struct{}),
	}
}

func (p *terminalPresenter) StatusChanged(state transport.State) {
	p.logger.Info("session status", "state", state)
	if state == transport.StateOpen {
		p.retries = 0
	}
}

func (p *terminalPresenter) ShowError(err *transport.ConnectionError) {
	p.logger.Error(err.Name, "detail", err.Description, "error", err.Err)
	if !err.Retryable {
		return
	}
	if p.retries >= maxConnectRetries {
		p.logger.Error("giving up after repeated connection failures", "attempts", p.retries+1)
		if p.terminate != nil {
			go p.terminate()
		}
		return
	}
	p.retries++
	p.logger.Info("retrying", "attempt", p.retries, "delay", retryDelay)
	if p.retry != nil {
		p.clock.AfterFunc(retryDelay, p.retry)
	}
}

func (p *terminalPresenter) SessionTerminated() {
	p.once.Do(func() { close(p.terminated) })
}
