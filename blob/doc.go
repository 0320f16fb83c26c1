// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package blob uploads binary assets (screenshots, attachments) to the
// console's blob service so events can refer to them by id instead of
// carrying the bytes over the event channel.
//
// An upload is a single POST of the raw bytes to
//
//	https://blob<suffix>.<domain>/api/FileUpload?validationSessionId=<session>
//
// with the asset's MIME type in the File-Content-Type header. The
// service answers {"id": ...} or {"error": ...}. Uploads are
// asynchronous, bounded by a timeout, and never retried; the callback
// receives the blob id, or "" after the failure has been logged.
package blob
