// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"log/slog"
	"time"

	"github.com/pion/webrtc/v4"
)

// ICEConfig holds ICE server configuration for PeerConnections.
type ICEConfig struct {
	// Servers are the STUN and TURN servers to gather candidates
	// from. Empty means host candidates only.
	Servers []webrtc.ICEServer
}

// ICEConfigFromURLs builds an ICEConfig with one server per URL, as
// listed in the transport.ice_servers configuration key.
func ICEConfigFromURLs(urls []string) ICEConfig {
	var config ICEConfig
	for _, url := range urls {
		config.Servers = append(config.Servers, webrtc.ICEServer{URLs: []string{url}})
	}
	return config
}

// DataChannelConfig configures both ends of the data-channel strategy.
type DataChannelConfig struct {
	ICE ICEConfig

	// IncludeLoopback adds loopback ICE candidates. Required when both
	// peers share a host with no other interface, as in tests.
	IncludeLoopback bool

	// GatherTimeout bounds ICE candidate gathering. Default 15s.
	GatherTimeout time.Duration

	// OpenTimeout bounds the wait for the data channel to open after
	// signaling. Default 30s.
	OpenTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c DataChannelConfig) withDefaults() DataChannelConfig {
	if c.GatherTimeout <= 0 {
		c.GatherTimeout = 15 * time.Second
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// newPeerConnection creates a pion PeerConnection for config.
func newPeerConnection(config DataChannelConfig) (*webrtc.PeerConnection, error) {
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(config.IncludeLoopback)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(webrtc.Configuration{
		ICEServers: config.ICE.Servers,
	})
}
