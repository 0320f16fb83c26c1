// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"log/slog"

	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/plugin"
)

// HostEventDispatcher delivers an event into the host application's
// own event system.
type HostEventDispatcher interface {
	DispatchEvent(name, eventType, source string, data map[string]any)
}

// HostEventDispatcherFunc adapts a function to HostEventDispatcher.
type HostEventDispatcherFunc func(name, eventType, source string, data map[string]any)

// DispatchEvent calls f.
func (f HostEventDispatcherFunc) DispatchEvent(name, eventType, source string, data map[string]any) {
	f(name, eventType, source, data)
}

// SyntheticEvent turns fakeEvent commands into ordinary host events.
// The detail must carry eventName, eventType and eventSource; eventData
// is optional.
type SyntheticEvent struct {
	plugin.Base
	dispatcher HostEventDispatcher
	logger     *slog.Logger
}

// NewSyntheticEvent creates the plugin.
func NewSyntheticEvent(dispatcher HostEventDispatcher, logger *slog.Logger) *SyntheticEvent {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyntheticEvent{dispatcher: dispatcher, logger: logger.With("plugin", CommandFakeEvent)}
}

func (p *SyntheticEvent) Vendor() string      { return event.ControlVendor }
func (p *SyntheticEvent) CommandType() string { return CommandFakeEvent }

func (p *SyntheticEvent) OnEventReceived(e event.Event) {
	detail := e.Detail()
	name, hasName := stringArgument(detail, "eventName")
	eventType, hasType := stringArgument(detail, "eventType")
	source, hasSource := stringArgument(detail, "eventSource")
	if !hasName || !hasType || !hasSource {
		p.logger.Warn("fake event missing name, type or source", "event_id", e.ID)
		return
	}
	data, _ := detail["eventData"].(map[string]any)
	p.dispatcher.DispatchEvent(name, eventType, source, data)
	p.logger.Info("dispatched synthetic event", "name", name, "type", eventType, "source", source)
}
