// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package plugins holds the built-in command plugins the console
// drives through control events on the [event.ControlVendor] vendor:
//
//   - [ConfigOverride] ("configUpdate") applies key/value overrides to
//     the host configuration store and reverts them when the session
//     ends.
//   - [Screenshot] ("screenshot") captures the host's view, uploads it
//     to the blob service and reports the blob id.
//   - [LogForwarder] ("logForwarding") mirrors everything the process
//     writes to stderr into "log" events while still writing it to
//     the original destination.
//   - [SyntheticEvent] ("fakeEvent") injects an event into the host's
//     own event system as though the host had produced it.
//
// Each plugin embeds plugin.Base and reads its arguments from the
// command's "detail" object.
package plugins
