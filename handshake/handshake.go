// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/bureau-foundation/inspect/transport"
)

// ErrCancelled is returned by a PINPrompter when the operator
// dismisses the prompt.
var ErrCancelled = errors.New("handshake: PIN entry cancelled")

// PINPrompter asks the operator for the console PIN.
type PINPrompter interface {
	// PromptPIN blocks until the operator submits a PIN or dismisses
	// the prompt (ErrCancelled). It returns ctx.Err() if ctx ends
	// first. The returned PIN is not validated.
	PromptPIN(ctx context.Context) (string, error)
}

// PromptFunc adapts a function to PINPrompter.
type PromptFunc func(ctx context.Context) (string, error)

// PromptPIN calls f.
func (f PromptFunc) PromptPIN(ctx context.Context) (string, error) { return f(ctx) }

// Config holds the dependencies of a Handshake.
type Config struct {
	// Prompter collects the PIN. Required unless every session
	// carries its token.
	Prompter PINPrompter

	// Domain is the console domain. Empty uses DefaultDomain.
	Domain string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Handshake authorizes sessions. It is safe for sequential use; the
// session controller never runs two handshakes at once.
type Handshake struct {
	prompter PINPrompter
	domain   string
	logger   *slog.Logger
}

// New creates a Handshake.
func New(config Config) *Handshake {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	domain := config.Domain
	if domain == "" {
		domain = DefaultDomain
	}
	return &Handshake{
		prompter: config.Prompter,
		domain:   domain,
		logger:   logger.With("component", "handshake"),
	}
}

// Domain returns the console domain URLs are built on.
func (h *Handshake) Domain() string { return h.domain }

// Begin authorizes session and returns the validated channel URL
// together with the completed session info. The PIN prompt is skipped
// when session.Token is already set. A missing client id is generated.
//
// Errors are *transport.ConnectionError. Nothing is dialed here.
func (h *Handshake) Begin(ctx context.Context, session SessionInfo) (string, SessionInfo, error) {
	if session.OrgID == "" {
		return "", SessionInfo{}, invalid(transport.KindNoOrgID, "no organization id configured")
	}
	if !isUUID(session.SessionID) {
		return "", SessionInfo{}, invalid(transport.KindNoSessionID, "session id %q is not a UUID", session.SessionID)
	}
	if session.ClientID == "" {
		session.ClientID = uuid.NewString()
	}
	if session.Environment == "" {
		session.Environment = Production
	}

	if session.Token == "" {
		pin, err := h.prompt(ctx)
		if err != nil {
			return "", SessionInfo{}, err
		}
		session.Token = pin
	}

	channelURL, err := BuildChannelURL(h.domain, session)
	if err != nil {
		return "", SessionInfo{}, err
	}
	if _, err := ValidateChannelURL(channelURL); err != nil {
		return "", SessionInfo{}, err
	}
	h.logger.Info("session authorized",
		"session_id", session.SessionID,
		"environment", session.Environment,
	)
	return channelURL, session, nil
}

func (h *Handshake) prompt(ctx context.Context) (string, error) {
	if h.prompter == nil {
		return "", invalid(transport.KindNoPINCode, "no PIN prompter configured")
	}
	pin, err := h.prompter.PromptPIN(ctx)
	switch {
	case errors.Is(err, ErrCancelled):
		h.logger.Info("PIN entry cancelled")
		return "", transport.NewConnectionError(transport.KindUserCancelled, err)
	case err != nil:
		return "", transport.NewConnectionError(transport.KindGeneric, fmt.Errorf("prompting for PIN: %w", err))
	}
	if !ValidPIN(pin) {
		return "", invalid(transport.KindNoPINCode, "entered PIN is not four digits")
	}
	return pin, nil
}
