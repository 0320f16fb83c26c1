// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the inspect
// binaries.
//
// Configuration is loaded from a single file named by either the
// INSPECT_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no discovery and no search path. Commands
// that run without a file use [Default].
//
// The file may carry environment-specific sections (development,
// staging, production) whose non-empty fields override the base
// values when [Config].Environment matches. Production defaults are
// stricter: the log forwarder is off unless explicitly enabled, and
// the console environment is pinned to "prod".
//
// ${HOME} and ${VAR:-default} patterns are expanded in path fields.
//
// Key exports:
//
//   - [Config] -- master struct with Console, Transport, Session,
//     Upload, Plugins and HostConfig
//   - [Default] -- development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other inspect packages.
package config
