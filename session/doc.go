// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session coordinates one remote-inspection session: it owns
// the event queues, the transport, the plugin registry and the
// session state, and it is the surface a host application talks to.
//
// # Lifecycle
//
// [Controller.Start] arms the boot timer. Events the host sends
// before a session deep link arrives are buffered; if no link arrives
// within the boot timeout the buffers are discarded and further
// events are ignored until a session starts, at which point every
// registered [StateProducer] contributes one resync event so the
// console still sees current host state.
//
// [Controller.StartSessionFromDeepLink] validates the link (a
// malformed link changes nothing), runs the PIN handshake and
// connects. A session whose channel URL is already known reconnects
// without prompting again.
//
// # Event flow
//
// Many producers feed the outbound queue through [Controller.Send].
// One goroutine drains it onto the transport, but only after the
// console has sent the startForwarding control command on the
// current connection. Inbound events land in their own queue and a
// second goroutine dispatches them to plugins, so a slow plugin never
// stalls the transport's read loop. Both queues drop their oldest
// event when full.
//
// Presenter calls (status changes, error banners) run on a third
// goroutine so UI work never blocks event draining.
//
// # Errors
//
// Connection failures arrive as *transport.ConnectionError values.
// Retryable ones are shown with a retry affordance and leave session
// state intact; anything else terminates the session, which reverts
// plugin side effects and clears the queues.
package session
