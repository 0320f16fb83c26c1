// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP and connection helpers shared by the
// blob uploader, the data-channel signaler, and the transports.
//
// Response helpers bound every body read at [MaxResponseSize]. The
// upload and signaling endpoints answer with a few hundred bytes of
// JSON; anything bigger is a misbehaving server.
//
// [IsExpectedCloseError] tells a receive loop whether a read failure
// is ordinary teardown, so it can exit quietly instead of reporting a
// connection error to its delegate.
package netutil
