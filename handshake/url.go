// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/bureau-foundation/inspect/transport"
)

// DefaultDomain is the console's production domain.
const DefaultDomain = "griffon.adobe.com"

const (
	orgIDSuffix     = "@AdobeOrg"
	channelPath     = "/client/v1"
	channelHostName = "connect"
)

// Query keys of channel URLs and deep links.
const (
	keySessionID   = "sessionId"
	keyClientID    = "clientId"
	keyOrgID       = "orgId"
	keyToken       = "token"
	keyEnvironment = "env"
)

// SessionInfo identifies a console session and, once authorized, the
// credentials used to join it.
type SessionInfo struct {
	SessionID   string
	ClientID    string
	OrgID       string
	Token       string
	Environment Environment
}

// BuildChannelURL validates info and assembles its channel URL on
// domain. An empty domain uses DefaultDomain.
func BuildChannelURL(domain string, info SessionInfo) (string, error) {
	if domain == "" {
		domain = DefaultDomain
	}
	if err := validateSessionInfo(info); err != nil {
		return "", err
	}
	if strings.ContainsAny(domain, "/?#@:") {
		return "", invalid(transport.KindNoURL, "domain %q is not a host name", domain)
	}

	query := url.Values{}
	query.Set(keySessionID, info.SessionID)
	query.Set(keyToken, info.Token)
	query.Set(keyOrgID, info.OrgID)
	query.Set(keyClientID, info.ClientID)
	channel := url.URL{
		Scheme:   "wss",
		Host:     channelHostName + info.Environment.Suffix() + "." + domain,
		Path:     channelPath,
		RawQuery: query.Encode(),
	}
	return channel.String(), nil
}

// ValidateChannelURL checks a channel URL and returns the session it
// names. Any violation returns a *transport.ConnectionError.
func ValidateChannelURL(raw string) (SessionInfo, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return SessionInfo{}, invalid(transport.KindNoURL, "unparseable channel URL: %v", err)
	}
	if parsed.Scheme != "wss" {
		return SessionInfo{}, invalid(transport.KindNoURL, "channel URL scheme %q is not wss", parsed.Scheme)
	}
	if parsed.Path != channelPath {
		return SessionInfo{}, invalid(transport.KindNoURL, "channel URL path %q", parsed.Path)
	}
	if parsed.User != nil || parsed.Fragment != "" {
		return SessionInfo{}, invalid(transport.KindNoURL, "channel URL carries credentials or fragment")
	}

	label, _, found := strings.Cut(parsed.Hostname(), ".")
	if !found || !strings.HasPrefix(label, channelHostName) {
		return SessionInfo{}, invalid(transport.KindNoURL, "channel host %q", parsed.Hostname())
	}
	environment, ok := environmentFromSuffix(strings.TrimPrefix(label, channelHostName))
	if !ok {
		return SessionInfo{}, invalid(transport.KindNoURL, "channel host %q names no known environment", parsed.Hostname())
	}

	query, err := url.ParseQuery(parsed.RawQuery)
	if err != nil {
		return SessionInfo{}, invalid(transport.KindNoURL, "channel URL query: %v", err)
	}
	allowed := []string{keySessionID, keyToken, keyOrgID, keyClientID}
	if err := checkKeys(query, allowed); err != nil {
		return SessionInfo{}, err
	}

	info := SessionInfo{
		SessionID:   query.Get(keySessionID),
		ClientID:    query.Get(keyClientID),
		OrgID:       query.Get(keyOrgID),
		Token:       query.Get(keyToken),
		Environment: environment,
	}
	if err := validateSessionInfo(info); err != nil {
		return SessionInfo{}, err
	}
	return info, nil
}

// ParseDeepLink validates a session deep link. sessionId is required;
// clientId, orgId, token and env are optional but validated when
// present. Unknown query keys are rejected. Environment stays empty
// when the link does not name one, so the caller's default applies.
func ParseDeepLink(raw string) (SessionInfo, error) {
	parsed, err := url.Parse(raw)
	if err != nil {
		return SessionInfo{}, invalid(transport.KindNoSessionID, "unparseable deep link: %v", err)
	}
	query, err := url.ParseQuery(parsed.RawQuery)
	if err != nil {
		return SessionInfo{}, invalid(transport.KindNoSessionID, "deep link query: %v", err)
	}
	allowed := []string{keySessionID, keyClientID, keyOrgID, keyToken, keyEnvironment}
	if err := checkKeys(query, allowed); err != nil {
		return SessionInfo{}, err
	}

	info := SessionInfo{
		SessionID: query.Get(keySessionID),
		ClientID:  query.Get(keyClientID),
		OrgID:     query.Get(keyOrgID),
		Token:     query.Get(keyToken),
	}
	if !isUUID(info.SessionID) {
		return SessionInfo{}, invalid(transport.KindNoSessionID, "deep link session id %q is not a UUID", info.SessionID)
	}
	if info.ClientID != "" && !isUUID(info.ClientID) {
		return SessionInfo{}, invalid(transport.KindNoURL, "deep link client id %q is not a UUID", info.ClientID)
	}
	if info.OrgID != "" && !validOrgID(info.OrgID) {
		return SessionInfo{}, invalid(transport.KindNoOrgID, "deep link org id %q", info.OrgID)
	}
	if info.Token != "" && !ValidPIN(info.Token) {
		return SessionInfo{}, invalid(transport.KindNoPINCode, "deep link token is not four digits")
	}
	if query.Has(keyEnvironment) {
		info.Environment, err = ParseEnvironment(query.Get(keyEnvironment))
		if err != nil {
			return SessionInfo{}, transport.NewConnectionError(transport.KindNoURL, err)
		}
	}
	return info, nil
}

// ValidPIN reports whether pin is exactly four ASCII digits.
func ValidPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for i := range len(pin) {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}

func validateSessionInfo(info SessionInfo) error {
	if !isUUID(info.SessionID) {
		return invalid(transport.KindNoSessionID, "session id %q is not a UUID", info.SessionID)
	}
	if !isUUID(info.ClientID) {
		return invalid(transport.KindNoURL, "client id %q is not a UUID", info.ClientID)
	}
	if info.OrgID == "" {
		return invalid(transport.KindNoOrgID, "organization id is empty")
	}
	if !validOrgID(info.OrgID) {
		return invalid(transport.KindNoOrgID, "organization id %q does not end with %s", info.OrgID, orgIDSuffix)
	}
	if !ValidPIN(info.Token) {
		return invalid(transport.KindNoPINCode, "token is not four digits")
	}
	if _, err := ParseEnvironment(string(info.Environment)); err != nil {
		return transport.NewConnectionError(transport.KindNoURL, err)
	}
	return nil
}

func validOrgID(orgID string) bool {
	return len(orgID) > len(orgIDSuffix) && strings.HasSuffix(orgID, orgIDSuffix)
}

// isUUID accepts only the canonical 36-character hyphenated form.
func isUUID(value string) bool {
	if len(value) != 36 {
		return false
	}
	_, err := uuid.Parse(value)
	return err == nil
}

func checkKeys(query url.Values, allowed []string) error {
	for key, values := range query {
		known := false
		for _, candidate := range allowed {
			if key == candidate {
				known = true
				break
			}
		}
		if !known {
			return invalid(transport.KindNoURL, "unrecognized query parameter %q", key)
		}
		if len(values) != 1 {
			return invalid(transport.KindNoURL, "query parameter %q repeated", key)
		}
	}
	return nil
}

func invalid(kind transport.ErrorKind, format string, args ...any) *transport.ConnectionError {
	return transport.NewConnectionError(kind, errors.New(fmt.Sprintf(format, args...)))
}
