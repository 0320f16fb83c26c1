// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package plugin defines the command plugin contract and the registry
// that routes inbound console events to plugins.
//
// A [Plugin] declares the vendor namespace and command type it
// handles. The [Registry] groups plugins by a BLAKE3 hash of their
// vendor so that an event for a vendor nobody registered is rejected
// with a single map lookup. Within a vendor, plugins receive events in
// registration order when their command type matches the event's
// payload "type" or when they registered the [Wildcard].
//
// Lifecycle fan-out (connected, disconnected, terminated) reaches
// every registered plugin regardless of vendor. Plugins that care
// about only some callbacks embed [Base].
package plugin
