// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/handshake"
)

// Wildcard as a command type matches every command of the vendor.
const Wildcard = "*"

// Session is the handle a plugin receives on registration. The
// session controller implements it.
type Session interface {
	// Send queues an event for the console. It never blocks and never
	// fails; events may be dropped if the outbound queue overflows.
	Send(e event.Event)

	// SessionID returns the current console session id, or "" when no
	// session is established.
	SessionID() string

	// Environment returns the console environment of the current
	// session, which selects hosts for side services such as blob
	// upload.
	Environment() handshake.Environment
}

// Plugin handles console commands for one vendor and command type.
//
// Callbacks run on the session controller's inbound goroutine, one at
// a time. A slow callback delays every later inbound event, so
// long-running work belongs on a goroutine of the plugin's own.
type Plugin interface {
	// Vendor is the event vendor namespace the plugin serves.
	Vendor() string

	// CommandType is the payload "type" the plugin handles, or
	// Wildcard.
	CommandType() string

	// OnRegistered is called once, synchronously, by Register.
	OnRegistered(session Session)

	// OnEventReceived delivers a matching inbound event.
	OnEventReceived(e event.Event)

	// OnSessionConnected is called when the channel opens.
	OnSessionConnected()

	// OnSessionDisconnected is called with the close code when the
	// channel closes.
	OnSessionDisconnected(code int)

	// OnSessionTerminated is called when the session is torn down.
	// Plugins revert any host state they changed.
	OnSessionTerminated()
}

// Base implements every Plugin callback as a no-op. Embed it and
// override the callbacks you need; Vendor and CommandType must still
// be provided.
type Base struct{}

func (Base) OnRegistered(Session)        {}
func (Base) OnEventReceived(event.Event) {}
func (Base) OnSessionConnected()         {}
func (Base) OnSessionDisconnected(int)   {}
func (Base) OnSessionTerminated()        {}
