// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
)

// Close codes exchanged with the console. 1000 and 1006 are the
// standard WebSocket codes; the 4xxx range is console-defined.
const (
	CloseNormal          = 1000
	CloseAbnormal        = 1006
	CloseClientError     = 4400
	CloseOrgMismatch     = 4900
	CloseConnectionLimit = 4901
	CloseEventLimit      = 4902
	CloseDeletedSession  = 4903
)

// ErrNotConnected is returned by Send when the transport is not Open.
var ErrNotConnected = errors.New("transport: not connected")

// CloseError reports that the peer closed the channel with a code.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("channel closed with code %d", e.Code)
	}
	return fmt.Sprintf("channel closed with code %d: %s", e.Code, e.Reason)
}

// ErrorKind enumerates the connection failures a session can surface.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindNoOrgID
	KindNoSessionID
	KindNoPINCode
	KindNoURL
	KindOrgIDMismatch
	KindConnectionLimit
	KindEventLimit
	KindDeletedSession
	KindClientError
	KindUserCancelled
)

type kindInfo struct {
	name        string
	description string
	retryable   bool
}

var kinds = map[ErrorKind]kindInfo{
	KindGeneric: {
		"Connection Error",
		"The connection failed, possibly because of a network problem or an incorrect PIN. Check connectivity and the PIN, then try again.",
		true,
	},
	KindNoOrgID: {
		"Missing Organization ID",
		"The host application has no organization ID configured, so no session can be authorized.",
		false,
	},
	KindNoSessionID: {
		"Invalid Session ID",
		"The session link is missing a session ID or the ID is malformed. Open a new link from the console.",
		false,
	},
	KindNoPINCode: {
		"Invalid PIN",
		"The PIN was missing or rejected. Enter the four-digit PIN shown in the console.",
		true,
	},
	KindNoURL: {
		"Invalid Connection URL",
		"A channel URL could not be built from the session details.",
		false,
	},
	KindOrgIDMismatch: {
		"Organization Mismatch",
		"The session belongs to a different organization than the host application.",
		false,
	},
	KindConnectionLimit: {
		"Connection Limit Reached",
		"The session already has the maximum number of connected clients.",
		false,
	},
	KindEventLimit: {
		"Event Limit Reached",
		"The session has received the maximum number of events for its plan.",
		false,
	},
	KindDeletedSession: {
		"Session Deleted",
		"The session was deleted in the console. Start a new session.",
		false,
	},
	KindClientError: {
		"Client Error",
		"The console rejected a message from this client and closed the connection.",
		false,
	},
	KindUserCancelled: {
		"Cancelled",
		"The PIN prompt was dismissed.",
		false,
	},
}

// ConnectionError is a classified session connection failure.
type ConnectionError struct {
	Kind        ErrorKind
	Name        string
	Description string
	Retryable   bool

	// Err is the underlying cause, if any.
	Err error
}

// NewConnectionError builds a ConnectionError of kind, filling the
// name, description and retryability from the kind's definition.
func NewConnectionError(kind ErrorKind, cause error) *ConnectionError {
	info, ok := kinds[kind]
	if !ok {
		info = kinds[KindGeneric]
	}
	return &ConnectionError{
		Kind:        kind,
		Name:        info.name,
		Description: info.description,
		Retryable:   info.retryable,
		Err:         cause,
	}
}

func (e *ConnectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return e.Name
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ClassifyClose maps a close code to a ConnectionError. It returns nil
// for a normal close. awaitingPIN is true when the connection was
// attempted with a freshly entered PIN and never reached Open; a
// generic failure in that situation most likely means the console
// rejected the PIN, so it is reported as a retryable PIN error.
func ClassifyClose(code int, awaitingPIN bool) *ConnectionError {
	cause := &CloseError{Code: code}
	switch code {
	case CloseNormal:
		return nil
	case CloseOrgMismatch:
		return NewConnectionError(KindOrgIDMismatch, cause)
	case CloseConnectionLimit:
		return NewConnectionError(KindConnectionLimit, cause)
	case CloseEventLimit:
		return NewConnectionError(KindEventLimit, cause)
	case CloseDeletedSession:
		return NewConnectionError(KindDeletedSession, cause)
	case CloseClientError:
		return NewConnectionError(KindClientError, cause)
	}
	if awaitingPIN {
		return NewConnectionError(KindNoPINCode, cause)
	}
	return NewConnectionError(KindGeneric, cause)
}
