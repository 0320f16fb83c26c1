// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/inspect/transport"
)

// StatusIndicator renders the connection state as a colored dot and
// label.
type StatusIndicator struct {
	State transport.State
	theme Theme
}

// NewStatusIndicator starts in the unknown state.
func NewStatusIndicator(theme Theme) StatusIndicator {
	return StatusIndicator{State: transport.StateUnknown, theme: theme}
}

// Label is the human-readable state.
func (indicator StatusIndicator) Label() string {
	switch indicator.State {
	case transport.StateOpen:
		return "Connected"
	case transport.StateConnecting:
		return "Connecting"
	case transport.StateClosing:
		return "Disconnecting"
	case transport.StateClosed:
		return "Disconnected"
	default:
		return "Not connected"
	}
}

// View renders the indicator.
func (indicator StatusIndicator) View() string {
	dot := lipgloss.NewStyle().Foreground(indicator.theme.StateColor(indicator.State)).Render("●")
	label := lipgloss.NewStyle().Foreground(indicator.theme.NormalText).Render(indicator.Label())
	return dot + " " + label
}
