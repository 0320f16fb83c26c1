// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport carries events between a host application and a
// remote inspection console over a single bidirectional channel.
//
// [Transport] owns at most one connection at a time and walks the
// [State] machine:
//
//	Unknown ──Connect──▶ Connecting ──▶ Open ──Disconnect──▶ Closing ──▶ Closed
//	                          │                                          ▲
//	                          └───────────── dial failure ───────────────┘
//
// Any state moves to Closed on an unrecoverable error, and Closed is
// left only by a fresh Connect. Connect and Disconnect return
// immediately; their outcome reaches the caller through [Delegate]
// callbacks, which run on transport goroutines. Send is synchronous
// and serialized, and splits oversized events with an
// [event.Chunker]. Received chunks are rebuilt with an
// [event.Reassembler] before MessageReceived fires. There is no
// automatic reconnection.
//
// The wire is chosen at construction through a [Strategy]:
//
//   - [WebSocketStrategy] dials the console's wss:// channel URL with
//     gorilla/websocket, keeping the connection alive with pings.
//   - [DataChannelStrategy] negotiates a WebRTC data channel with
//     pion/webrtc. SDP offers and answers travel through a
//     [Signaler]: [HTTPSignaler] against a signaling endpoint in
//     production, [MemorySignaler] in-process for tests. Each message
//     is wrapped in a small CBOR frame so the console's close code and
//     reason survive the trip, since data channels have no close
//     handshake of their own.
//
// The console side of both strategies is provided too:
// [AcceptWebSocket] upgrades an HTTP request, and [DataChannelListener]
// answers offers. The mock console binary and the tests use them.
//
// Close codes sent by the console map onto [ConnectionError] kinds via
// [ClassifyClose]. Each kind carries a user-facing name, a
// description, and whether retrying can succeed.
package transport
