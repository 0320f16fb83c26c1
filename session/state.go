// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/handshake"
)

// sessionState is every mutable session flag, guarded by
// Controller.mutex.
type sessionState struct {
	// forwardingEnabled gates the outbound drain. Set by the
	// startForwarding control command, cleared on every disconnect.
	forwardingEnabled bool

	// bootEventsCleared records that the boot timeout discarded
	// buffered events; the next connection pushes resync events.
	bootEventsCleared bool

	// processingEnabled controls whether Send queues events.
	processingEnabled bool

	// awaitingPIN is set while a connection made with a freshly
	// supplied PIN has not yet opened.
	awaitingPIN bool

	// handshaking is set while a PIN prompt is outstanding.
	handshaking bool

	// session is the identity from the last deep link, completed by
	// the handshake.
	session handshake.SessionInfo

	// channelURL is the authorized URL of the current session. A
	// non-empty value lets StartSession reconnect without a handshake.
	channelURL string
}

// StateProducer supplies an event describing current host state. After
// the boot timeout discarded buffered events, each registered producer
// is asked for one event when the next connection opens.
type StateProducer interface {
	StateEvent() event.Event
}

// StateProducerFunc adapts a function to StateProducer.
type StateProducerFunc func() event.Event

// StateEvent calls f.
func (f StateProducerFunc) StateEvent() event.Event { return f() }

// Stats reports queue occupancy and overflow.
type Stats struct {
	OutboundLen     int
	InboundLen      int
	OutboundDropped uint64
	InboundDropped  uint64
}
