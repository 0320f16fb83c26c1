// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Vendor and type of the console's own control traffic.
const (
	// ControlVendor namespaces events produced by the inspection
	// subsystem itself rather than by a host SDK module.
	ControlVendor = "com.adobe.griffon.mobile"

	// ControlType is the event type of console control commands.
	ControlType = "control"

	// ClientType is the event type of the client-info event sent
	// immediately after a connection opens.
	ClientType = "client"

	// CommandStartForwarding is the control command that unlocks
	// outbound forwarding.
	CommandStartForwarding = "startForwarding"

	// CommandKey is the reserved payload key holding the command type.
	CommandKey = "type"

	// DetailKey is the payload key under which control commands carry
	// their arguments.
	DetailKey = "detail"
)

// Event is one record exchanged with the console. Treat values as
// immutable once constructed: Payload is shared by every copy.
type Event struct {
	ID        string
	Vendor    string
	Type      string
	Timestamp time.Time
	Payload   map[string]any

	// Chunk is set only on chunk fragments produced by a Chunker.
	Chunk *ChunkInfo
}

// ChunkInfo describes one fragment of a chunked event.
type ChunkInfo struct {
	// Index is the fragment position, starting at 0.
	Index int `json:"index"`
	// Total is the number of fragments making up the event.
	Total int `json:"total"`
	// Size is the length of the original serialized event.
	Size int `json:"size"`
	// Compression applied to the concatenated fragment data.
	Compression Compression `json:"compression"`
	// Digest is the hex BLAKE3-256 digest of the original bytes.
	Digest string `json:"digest"`
}

// New creates an event with a fresh UUID and the current time.
func New(vendor, eventType string, payload map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Vendor:    vendor,
		Type:      eventType,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// NewControl creates a control command event as the console would
// send it. detail may be nil.
func NewControl(command string, detail map[string]any) Event {
	payload := map[string]any{CommandKey: command}
	if detail != nil {
		payload[DetailKey] = detail
	}
	return New(ControlVendor, ControlType, payload)
}

// CommandType returns the payload's reserved "type" value, or "" if
// the payload has none or it is not a string.
func (e Event) CommandType() string {
	commandType, _ := e.Payload[CommandKey].(string)
	return commandType
}

// Detail returns the control command arguments, or nil.
func (e Event) Detail() map[string]any {
	detail, _ := e.Payload[DetailKey].(map[string]any)
	return detail
}

// IsStartForwarding reports whether e is the control command that
// unlocks outbound forwarding.
func (e Event) IsStartForwarding() bool {
	return e.Vendor == ControlVendor && e.Type == ControlType &&
		e.CommandType() == CommandStartForwarding
}

// wireEvent is the JSON shape of an Event.
type wireEvent struct {
	ID        string         `json:"id"`
	Vendor    string         `json:"vendor"`
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
	Chunk     *ChunkInfo     `json:"chunk,omitempty"`
}

// MarshalJSON encodes e in wire form.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEvent{
		ID:        e.ID,
		Vendor:    e.Vendor,
		Type:      e.Type,
		Timestamp: e.Timestamp.UnixMilli(),
		Payload:   e.Payload,
		Chunk:     e.Chunk,
	})
}

// UnmarshalJSON decodes wire form into e.
func (e *Event) UnmarshalJSON(data []byte) error {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*e = Event{
		ID:        wire.ID,
		Vendor:    wire.Vendor,
		Type:      wire.Type,
		Timestamp: time.UnixMilli(wire.Timestamp),
		Payload:   wire.Payload,
		Chunk:     wire.Chunk,
	}
	return nil
}

// ErrInvalidEvent is returned by Unmarshal for structurally valid JSON
// that lacks required fields.
var ErrInvalidEvent = errors.New("invalid event")

// Marshal serializes e to wire JSON.
func Marshal(e Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshaling event %s: %w", e.ID, err)
	}
	return data, nil
}

// Unmarshal parses wire JSON. The id and vendor fields are required.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshaling event: %w", err)
	}
	if e.ID == "" {
		return Event{}, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if e.Vendor == "" {
		return Event{}, fmt.Errorf("%w: event %s missing vendor", ErrInvalidEvent, e.ID)
	}
	return e, nil
}
