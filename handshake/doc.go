// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package handshake authorizes a console session and produces the
// channel URL the transport dials.
//
// A session starts from a deep link the operator opens on the host
// device. [ParseDeepLink] validates it before anything else happens;
// a malformed link fails closed with no side effects. [Handshake]
// then asks the operator for the four-digit PIN shown in the console
// (through a [PINPrompter]) unless the link already carries one, and
// assembles the channel URL:
//
//	wss://connect<suffix>.<domain>/client/v1?sessionId=<uuid>&token=<pin>&orgId=<org>&clientId=<uuid>
//
// where the suffix is empty for the production [Environment] and
// "-<env>" otherwise. Every URL is re-checked with
// [ValidateChannelURL] before it is returned, so a URL that reaches
// the transport has a UUID session and client id, a four-digit
// token, an organization id ending in "@AdobeOrg", a known
// environment, and no other query parameters.
//
// Failures are *transport.ConnectionError values whose kind tells the
// session controller whether re-prompting can help.
//
// [TerminalPrompter] reads the PIN from a terminal without echo; the
// lib/tui package provides a bubbletea modal for full-screen hosts.
package handshake
