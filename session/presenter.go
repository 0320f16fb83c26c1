// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"log/slog"

	"github.com/bureau-foundation/inspect/transport"
)

// Presenter shows session status to the operator. The controller
// calls it from a single dedicated goroutine, in order.
type Presenter interface {
	// StatusChanged reports a transport state transition.
	StatusChanged(state transport.State)

	// ShowError reports a connection failure. When err.Retryable is
	// true the presenter should offer a retry that calls
	// Controller.StartSession.
	ShowError(err *transport.ConnectionError)

	// SessionTerminated reports that the session was torn down.
	SessionTerminated()
}

// logPresenter is the Presenter used when none is configured.
type logPresenter struct {
	logger *slog.Logger
}

func (p logPresenter) StatusChanged(state transport.State) {
	p.logger.Info("session status", "state", state)
}

func (p logPresenter) ShowError(err *transport.ConnectionError) {
	p.logger.Error("session error",
		"kind", err.Name,
		"description", err.Description,
		"retryable", err.Retryable,
		"error", err,
	)
}

func (p logPresenter) SessionTerminated() {
	p.logger.Info("session terminated")
}
