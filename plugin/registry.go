// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plugin

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/inspect/event"
)

// vendorKey is the BLAKE3-256 digest of a vendor string.
type vendorKey [32]byte

func keyOf(vendor string) vendorKey {
	return blake3.Sum256([]byte(vendor))
}

// Registry routes events to plugins. It is safe for concurrent use.
// Callbacks run without the registry lock held, so a plugin may
// register further plugins from a callback.
type Registry struct {
	logger *slog.Logger

	mutex    sync.RWMutex
	byVendor map[vendorKey][]Plugin
	// ordered holds every plugin in registration order for lifecycle
	// fan-out.
	ordered []Plugin
}

// NewRegistry creates an empty registry. A nil logger uses
// slog.Default().
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger.With("component", "plugin-registry"),
		byVendor: make(map[vendorKey][]Plugin),
	}
}

// Register adds p after any plugins already registered for its vendor
// and calls p.OnRegistered(session).
func (r *Registry) Register(p Plugin, session Session) {
	key := keyOf(p.Vendor())
	r.mutex.Lock()
	r.byVendor[key] = append(r.byVendor[key], p)
	r.ordered = append(r.ordered, p)
	r.mutex.Unlock()

	r.logger.Debug("plugin registered", "vendor", p.Vendor(), "command_type", p.CommandType())
	p.OnRegistered(session)
}

// Dispatch delivers e to every plugin of e's vendor whose command type
// equals e's or is Wildcard, in registration order. It returns the
// number of plugins that received the event.
func (r *Registry) Dispatch(e event.Event) int {
	r.mutex.RLock()
	candidates := r.byVendor[keyOf(e.Vendor)]
	r.mutex.RUnlock()
	if len(candidates) == 0 {
		return 0
	}

	commandType := e.CommandType()
	delivered := 0
	for _, p := range candidates {
		handles := p.CommandType()
		if handles != Wildcard && handles != commandType {
			continue
		}
		p.OnEventReceived(e)
		delivered++
	}
	if delivered == 0 {
		r.logger.Debug("no plugin for command", "vendor", e.Vendor, "command_type", commandType)
	}
	return delivered
}

// NotifyConnected calls OnSessionConnected on every plugin.
func (r *Registry) NotifyConnected() {
	for _, p := range r.snapshot() {
		p.OnSessionConnected()
	}
}

// NotifyDisconnected calls OnSessionDisconnected(code) on every plugin.
func (r *Registry) NotifyDisconnected(code int) {
	for _, p := range r.snapshot() {
		p.OnSessionDisconnected(code)
	}
}

// NotifyTerminated calls OnSessionTerminated on every plugin.
func (r *Registry) NotifyTerminated() {
	for _, p := range r.snapshot() {
		p.OnSessionTerminated()
	}
}

// Len returns the number of registered plugins.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.ordered)
}

// snapshot returns the registration-ordered plugin list. Register
// appends under the lock, so a clone is needed for iteration outside
// it.
func (r *Registry) snapshot() []Plugin {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return slices.Clone(r.ordered)
}
