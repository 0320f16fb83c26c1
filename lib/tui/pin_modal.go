// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// pinLength is the number of digits in a console PIN.
const pinLength = 4

// PINModalResult is the outcome of one key press in a PINModal.
type PINModalResult int

const (
	PINEditing PINModalResult = iota
	PINSubmitted
	PINCancelled
)

// PINModal is a centered dialog holding a four-digit text input.
// Non-digit keys are ignored and Enter submits only a complete PIN.
type PINModal struct {
	input textinput.Model
	theme Theme
	keys  KeyMap
}

// NewPINModal creates a focused, empty modal.
func NewPINModal(theme Theme, keys KeyMap) PINModal {
	input := textinput.New()
	input.Prompt = "PIN: "
	input.Placeholder = "0000"
	input.CharLimit = pinLength
	input.Width = pinLength + 1
	input.Focus()
	return PINModal{input: input, theme: theme, keys: keys}
}

// Value returns the digits entered so far.
func (modal PINModal) Value() string {
	return modal.input.Value()
}

// Update applies one key press.
func (modal *PINModal) Update(message tea.KeyMsg) (PINModalResult, tea.Cmd) {
	switch {
	case keyMatches(message, modal.keys.Cancel):
		return PINCancelled, nil
	case keyMatches(message, modal.keys.Submit):
		if len(modal.input.Value()) == pinLength {
			return PINSubmitted, nil
		}
		return PINEditing, nil
	}

	if message.Type == tea.KeyRunes {
		digits := make([]rune, 0, len(message.Runes))
		for _, character := range message.Runes {
			if character >= '0' && character <= '9' {
				digits = append(digits, character)
			}
		}
		if len(digits) == 0 {
			return PINEditing, nil
		}
		message.Runes = digits
	}

	var command tea.Cmd
	modal.input, command = modal.input.Update(message)
	return PINEditing, command
}

// View renders the dialog box.
func (modal PINModal) View() string {
	title := lipgloss.NewStyle().Bold(true).Render("Connect to inspection session")
	hint := lipgloss.NewStyle().
		Foreground(modal.theme.HelpText).
		Render("Enter the 4-digit PIN shown in the console.\nenter connect · esc cancel")

	body := strings.Join([]string{title, "", modal.input.View(), "", hint}, "\n")
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(modal.theme.BorderColor).
		Foreground(modal.theme.ModalForeground).
		Background(modal.theme.ModalBackground).
		Padding(1, 2).
		Render(body)
}
