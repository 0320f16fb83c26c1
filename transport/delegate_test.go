// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"log/slog"
	"time"

	"github.com/bureau-foundation/inspect/event"
)

const testTimeout = 10 * time.Second

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type disconnect struct {
	code     int
	reason   string
	wasClean bool
}

// recordingDelegate forwards every callback to a buffered channel.
type recordingDelegate struct {
	connected    chan struct{}
	disconnected chan disconnect
	errors       chan error
	messages     chan event.Event
	states       chan State
}

func newRecordingDelegate() *recordingDelegate {
	return &recordingDelegate{
		connected:    make(chan struct{}, 16),
		disconnected: make(chan disconnect, 16),
		errors:       make(chan error, 16),
		messages:     make(chan event.Event, 256),
		states:       make(chan State, 64),
	}
}

func (d *recordingDelegate) Connected() { d.connected <- struct{}{} }

func (d *recordingDelegate) Disconnected(code int, reason string, wasClean bool) {
	d.disconnected <- disconnect{code: code, reason: reason, wasClean: wasClean}
}

func (d *recordingDelegate) Error(err error) { d.errors <- err }

func (d *recordingDelegate) MessageReceived(e event.Event) { d.messages <- e }

func (d *recordingDelegate) StateChanged(state State) { d.states <- state }
