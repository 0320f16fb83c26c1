// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tui is the full-screen terminal front end of an inspection
// session. Built on bubbletea (Elm architecture), it shows a status
// indicator, the most recent log lines, error banners with a retry
// affordance, and a modal for entering the console PIN.
//
// [Program] adapts a running bubbletea program to the interfaces the
// session packages expect: it is a session Presenter and a handshake
// PINPrompter, and [NewLogHandler] routes slog records into the log
// pane. All of them communicate with the model by sending messages,
// so they are safe to call from any goroutine.
package tui
