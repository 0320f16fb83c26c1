// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/inspect/blob"
	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/lib/config"
	"github.com/bureau-foundation/inspect/lib/hostconfig"
	"github.com/bureau-foundation/inspect/plugins"
	"github.com/bureau-foundation/inspect/session"
)

// hostVendor tags events describing this process as a host.
const hostVendor = "com.bureau.inspect.host"

// Host event types.
const (
	hostConfigEvent       = "hostConfig"
	hostConfigChangeEvent = "hostConfigChange"
)

// hostConfig is what attachHost wires into a controller.
type hostConfig struct {
	plugins  config.PluginsConfig
	store    *hostconfig.Store
	uploader *blob.Uploader
	// capture renders the current view for screenshot commands.
	capture func() string
	logger  *slog.Logger
}

// eventSink is the part of the controller host wiring sends through.
type eventSink interface {
	Send(e event.Event)
}

// attachHost registers the enabled plugins and the state producers
// that describe this process after a resync.
func attachHost(controller *session.Controller, host hostConfig) {
	if config.Enabled(host.plugins.ConfigOverride) {
		controller.RegisterPlugin(plugins.NewConfigOverride(host.store, host.logger))
	}
	if config.Enabled(host.plugins.Screenshot) {
		capturer := plugins.ViewCapturer{View: host.capture}
		controller.RegisterPlugin(plugins.NewScreenshot(capturer, host.uploader, host.logger))
	}
	if config.Enabled(host.plugins.LogForwarder) {
		controller.RegisterPlugin(plugins.NewLogForwarder(-1, host.logger))
	}
	if config.Enabled(host.plugins.SyntheticEvent) {
		controller.RegisterPlugin(plugins.NewSyntheticEvent(hostDispatcher(controller, host.logger), host.logger))
	}

	controller.RegisterStateProducer(session.StateProducerFunc(func() event.Event {
		return hostConfigSnapshot(host.store)
	}))
	host.store.OnChange(func(change hostconfig.Change) {
		controller.Send(hostConfigChange(change))
	})
}

// hostDispatcher delivers synthetic events into this process's event
// stream, which is the session's outbound queue.
func hostDispatcher(sink eventSink, logger *slog.Logger) plugins.HostEventDispatcher {
	return plugins.HostEventDispatcherFunc(func(name, eventType, source string, data map[string]any) {
		logger.Info("dispatching synthetic event", "name", name, "type", eventType, "source", source)
		sink.Send(event.New(source, eventType, map[string]any{
			"name": name,
			"data": data,
		}))
	})
}

func hostConfigSnapshot(store *hostconfig.Store) event.Event {
	return event.New(hostVendor, hostConfigEvent, map[string]any{
		"config": store.Snapshot(),
	})
}

func hostConfigChange(change hostconfig.Change) event.Event {
	payload := map[string]any{"key": change.Key}
	if change.Deleted {
		payload["deleted"] = true
	} else {
		payload["value"] = change.Value
	}
	return event.New(hostVendor, hostConfigChangeEvent, payload)
}

// loadHostConfig opens the host configuration file, or an empty store
// when none is configured.
func loadHostConfig(path string) (*hostconfig.Store, error) {
	if path == "" {
		return hostconfig.New(nil), nil
	}
	store, err := hostconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading host config: %w", err)
	}
	return store, nil
}

// describeSession is the plain-text "screen" captured when no status
// view is running.
func describeSession(controller *session.Controller, store *hostconfig.Store) string {
	stats := controller.Stats()
	var builder strings.Builder
	fmt.Fprintf(&builder, "session:     %s\n", controller.SessionID())
	fmt.Fprintf(&builder, "environment: %s\n", controller.Environment())
	fmt.Fprintf(&builder, "state:       %s\n", controller.State())
	fmt.Fprintf(&builder, "queued:      %d outbound, %d inbound\n", stats.OutboundLen, stats.InboundLen)
	fmt.Fprintf(&builder, "dropped:     %d outbound, %d inbound\n", stats.OutboundDropped, stats.InboundDropped)

	snapshot := store.Snapshot()
	if len(snapshot) == 0 {
		return builder.String()
	}
	rendered, err := yaml.Marshal(snapshot)
	if err != nil {
		fmt.Fprintf(&builder, "host config: %v\n", err)
		return builder.String()
	}
	builder.WriteString("host config:\n")
	for _, line := range strings.Split(strings.TrimRight(string(rendered), "\n"), "\n") {
		builder.WriteString("  " + line + "\n")
	}
	return builder.String()
}
