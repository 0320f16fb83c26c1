// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command framework behind the inspect binary: a
// tree of [Command] values dispatched by name, per-command pflag flag
// sets, help rendering, typo suggestions for unknown commands and
// flags, and the shared logger constructor.
//
// Commands receive a context that is cancelled on SIGINT or SIGTERM.
// A command that has already reported its own failure returns an
// [ExitError] so main exits with the code without printing again.
package cli
