// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"log/slog"
	"sync"

	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/lib/hostconfig"
	"github.com/bureau-foundation/inspect/plugin"
)

// ConfigOverride applies the key/value pairs of a configUpdate command
// to a host configuration store. The value each key had before the
// first override of the session is remembered and restored when the
// session terminates. A null value removes the key.
type ConfigOverride struct {
	plugin.Base
	store  *hostconfig.Store
	logger *slog.Logger

	mutex     sync.Mutex
	originals map[string]originalValue
}

type originalValue struct {
	value   any
	existed bool
}

// NewConfigOverride creates the plugin for store.
func NewConfigOverride(store *hostconfig.Store, logger *slog.Logger) *ConfigOverride {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigOverride{
		store:     store,
		logger:    logger.With("plugin", CommandConfigUpdate),
		originals: make(map[string]originalValue),
	}
}

func (p *ConfigOverride) Vendor() string      { return event.ControlVendor }
func (p *ConfigOverride) CommandType() string { return CommandConfigUpdate }

func (p *ConfigOverride) OnEventReceived(e event.Event) {
	detail := e.Detail()
	if len(detail) == 0 {
		p.logger.Warn("config update without detail", "event_id", e.ID)
		return
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()
	for key, value := range detail {
		if _, recorded := p.originals[key]; !recorded {
			previous, existed := p.store.Get(key)
			p.originals[key] = originalValue{value: previous, existed: existed}
		}
		if value == nil {
			p.store.Delete(key)
		} else {
			p.store.Set(key, value)
		}
	}
	p.logger.Info("applied config overrides", "keys", len(detail))
}

// OnSessionTerminated restores every overridden key.
func (p *ConfigOverride) OnSessionTerminated() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if len(p.originals) == 0 {
		return
	}
	for key, original := range p.originals {
		if original.existed {
			p.store.Set(key, original.value)
		} else {
			p.store.Delete(key)
		}
	}
	p.logger.Info("reverted config overrides", "keys", len(p.originals))
	clear(p.originals)
}
