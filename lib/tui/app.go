// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/inspect/transport"
)

// maxLogLines bounds the log pane's scrollback.
const maxLogLines = 500

type statusMsg struct{ state transport.State }

type errorMsg struct{ err *transport.ConnectionError }

type terminatedMsg struct{}

type logLineMsg struct{ line string }

// pinRequestMsg opens the PIN modal. The outcome is delivered on reply,
// which has room for one value.
type pinRequestMsg struct{ reply chan pinResult }

// pinDismissMsg closes the modal opened for reply, if it is still
// showing. Sent when the requester stops waiting.
type pinDismissMsg struct{ reply chan pinResult }

type pinResult struct {
	pin       string
	cancelled bool
}

// AppConfig holds the callbacks and styling of an App.
type AppConfig struct {
	Theme Theme
	Keys  KeyMap

	// OnRetry is invoked when the user retries after a retryable
	// error. It runs in a tea.Cmd, off the update loop.
	OnRetry func()

	// OnTerminate is invoked when the user ends the session.
	OnTerminate func()
}

// App is the bubbletea model of the session UI.
type App struct {
	config AppConfig

	status     StatusIndicator
	lastError  *transport.ConnectionError
	terminated bool

	logLines []string

	pinModal *PINModal
	pinReply chan pinResult

	width  int
	height int

	// views receives every rendered frame for Snapshot. Shared
	// between copies of the model.
	views *viewCache
}

type viewCache struct {
	mutex sync.Mutex
	last  string
}

func (cache *viewCache) store(view string) {
	cache.mutex.Lock()
	cache.last = view
	cache.mutex.Unlock()
}

func (cache *viewCache) load() string {
	cache.mutex.Lock()
	defer cache.mutex.Unlock()
	return cache.last
}

// NewApp creates the model. A zero Theme or KeyMap uses the defaults.
func NewApp(config AppConfig) App {
	if config.Theme == (Theme{}) {
		config.Theme = DefaultTheme
	}
	if len(config.Keys.Quit.Keys()) == 0 {
		config.Keys = DefaultKeyMap
	}
	return App{
		config: config,
		status: NewStatusIndicator(config.Theme),
		views:  &viewCache{},
	}
}

// Init implements tea.Model.
func (app App) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (app App) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		app.width = message.Width
		app.height = message.Height
		return app, nil

	case statusMsg:
		app.status.State = message.state
		if message.state == transport.StateOpen {
			app.lastError = nil
			app.terminated = false
		}
		return app, nil

	case errorMsg:
		app.lastError = message.err
		return app, nil

	case terminatedMsg:
		app.terminated = true
		return app, nil

	case logLineMsg:
		app.logLines = append(app.logLines, message.line)
		if overflow := len(app.logLines) - maxLogLines; overflow > 0 {
			app.logLines = app.logLines[overflow:]
		}
		return app, nil

	case pinRequestMsg:
		if app.pinReply != nil {
			app.pinReply <- pinResult{cancelled: true}
		}
		modal := NewPINModal(app.config.Theme, app.config.Keys)
		app.pinModal = &modal
		app.pinReply = message.reply
		return app, textinput.Blink

	case pinDismissMsg:
		if app.pinReply == message.reply {
			app.pinModal = nil
			app.pinReply = nil
		}
		return app, nil

	case tea.KeyMsg:
		if app.pinModal != nil {
			return app.updatePINModal(message)
		}
		return app.updateKeys(message)
	}

	if app.pinModal != nil {
		var command tea.Cmd
		app.pinModal.input, command = app.pinModal.input.Update(message)
		return app, command
	}
	return app, nil
}

func (app App) updatePINModal(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if message.Type == tea.KeyCtrlC {
		app.pinReply <- pinResult{cancelled: true}
		app.pinModal, app.pinReply = nil, nil
		return app, tea.Quit
	}

	modal := *app.pinModal
	result, command := modal.Update(message)
	switch result {
	case PINSubmitted:
		app.pinReply <- pinResult{pin: modal.Value()}
		app.pinModal, app.pinReply = nil, nil
		return app, nil
	case PINCancelled:
		app.pinReply <- pinResult{cancelled: true}
		app.pinModal, app.pinReply = nil, nil
		return app, nil
	}
	app.pinModal = &modal
	return app, command
}

func (app App) updateKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case keyMatches(message, app.config.Keys.Quit):
		return app, tea.Quit

	case keyMatches(message, app.config.Keys.Retry):
		if app.lastError == nil || !app.lastError.Retryable || app.config.OnRetry == nil {
			return app, nil
		}
		app.lastError = nil
		app.terminated = false
		retry := app.config.OnRetry
		return app, func() tea.Msg {
			retry()
			return nil
		}

	case keyMatches(message, app.config.Keys.Terminate):
		if app.config.OnTerminate == nil {
			return app, nil
		}
		terminate := app.config.OnTerminate
		return app, func() tea.Msg {
			terminate()
			return nil
		}
	}
	return app, nil
}

// View implements tea.Model.
func (app App) View() string {
	theme := app.config.Theme

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Bold(true).Render("inspect"),
		"  ",
		app.status.View(),
	)

	sections := []string{header}
	if app.lastError != nil {
		sections = append(sections, app.errorBanner())
	} else if app.terminated {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.FaintText).
			Render("Session ended."))
	}

	logHeight := app.height - len(sections) - 2
	if logHeight < 1 {
		logHeight = 10
	}
	lines := app.logLines
	if len(lines) > logHeight {
		lines = lines[len(lines)-logHeight:]
	}
	sections = append(sections,
		lipgloss.NewStyle().Foreground(theme.NormalText).Render(strings.Join(lines, "\n")),
		app.helpLine(),
	)
	view := strings.Join(sections, "\n")

	if app.pinModal != nil && app.width > 0 && app.height > 0 {
		view = lipgloss.Place(app.width, app.height,
			lipgloss.Center, lipgloss.Center,
			app.pinModal.View())
	} else if app.pinModal != nil {
		view = app.pinModal.View()
	}

	app.views.store(view)
	return view
}

func (app App) errorBanner() string {
	theme := app.config.Theme
	text := app.lastError.Name + ": " + app.lastError.Description
	if app.lastError.Retryable && app.config.OnRetry != nil {
		text += "  (r to retry)"
	}
	return lipgloss.NewStyle().
		Foreground(theme.ErrorForeground).
		Background(theme.ErrorBackground).
		Padding(0, 1).
		Render(text)
}

func (app App) helpLine() string {
	bindings := []key.Binding{app.config.Keys.Quit}
	if app.lastError != nil && app.lastError.Retryable && app.config.OnRetry != nil {
		bindings = append(bindings, app.config.Keys.Retry)
	}
	if app.config.OnTerminate != nil {
		bindings = append(bindings, app.config.Keys.Terminate)
	}
	parts := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		help := binding.Help()
		parts = append(parts, help.Key+" "+help.Desc)
	}
	return lipgloss.NewStyle().
		Foreground(app.config.Theme.HelpText).
		Render(strings.Join(parts, " · "))
}

// keyMatches reports whether message triggers binding.
func keyMatches(message tea.KeyMsg, binding key.Binding) bool {
	return key.Matches(message, binding)
}
