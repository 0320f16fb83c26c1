// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plugins

// Command types handled by the built-in plugins.
const (
	CommandConfigUpdate  = "configUpdate"
	CommandScreenshot    = "screenshot"
	CommandLogForwarding = "logForwarding"
	CommandFakeEvent     = "fakeEvent"
)

// Event types the plugins emit on the control vendor.
const (
	// BlobEventType carries {"blobId", "mimeType"} after an upload.
	BlobEventType = "blob"

	// LogEventType carries one forwarded line as {"logline"}.
	LogEventType = "log"
)

// stringArgument returns detail[key] if it is a non-empty string.
func stringArgument(detail map[string]any, key string) (string, bool) {
	value, ok := detail[key].(string)
	return value, ok && value != ""
}
