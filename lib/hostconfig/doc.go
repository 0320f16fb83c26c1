// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostconfig holds the host application's runtime
// configuration: a flat map of top-level keys to JSON values, loaded
// from a JSONC file (JSON with comments and trailing commas).
//
// The config-override plugin edits a [Store] while a console session
// is attached and restores the original values when the session ends,
// so every mutation goes through [Store.Set] or [Store.Delete] and
// listeners registered with [Store.OnChange] observe each one.
//
// The file on disk is never rewritten. Overrides live only in memory.
package hostconfig
