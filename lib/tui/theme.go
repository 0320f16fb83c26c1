// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/inspect/transport"
)

// Theme is the color palette of the session UI, in lipgloss ANSI
// 256-color codes.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color
	HelpText   lipgloss.Color

	BorderColor lipgloss.Color

	ModalForeground lipgloss.Color
	ModalBackground lipgloss.Color

	// Status indicator colors by connection state.
	StatusOpen       lipgloss.Color
	StatusConnecting lipgloss.Color
	StatusClosed     lipgloss.Color

	ErrorForeground lipgloss.Color
	ErrorBackground lipgloss.Color
}

// StateColor returns the indicator color for state.
func (theme Theme) StateColor(state transport.State) lipgloss.Color {
	switch state {
	case transport.StateOpen:
		return theme.StatusOpen
	case transport.StateConnecting, transport.StateClosing:
		return theme.StatusConnecting
	default:
		return theme.StatusClosed
	}
}

// DefaultTheme suits 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),
	HelpText:   lipgloss.Color("241"),

	BorderColor: lipgloss.Color("240"),

	ModalForeground: lipgloss.Color("252"),
	ModalBackground: lipgloss.Color("237"),

	StatusOpen:       lipgloss.Color("114"), // green
	StatusConnecting: lipgloss.Color("220"), // amber
	StatusClosed:     lipgloss.Color("245"), // gray

	ErrorForeground: lipgloss.Color("255"),
	ErrorBackground: lipgloss.Color("124"), // dark red
}
