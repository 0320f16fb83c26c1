// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment is the deployment type of the host application. It is
// unrelated to the console environment a session connects to.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Transport strategy names accepted in transport.strategy.
const (
	StrategyWebSocket   = "websocket"
	StrategyDataChannel = "datachannel"
)

// Compression names accepted in session.compression.
var compressionValues = []string{"none", "lz4", "zstd"}

// Config is the master configuration.
type Config struct {
	// Environment identifies the deployment type.
	Environment Environment `yaml:"environment"`

	// Console selects which inspection console deployment to reach.
	Console ConsoleConfig `yaml:"console"`

	// Transport configures the event channel.
	Transport TransportConfig `yaml:"transport"`

	// Session configures queues and timers of the session controller.
	Session SessionConfig `yaml:"session"`

	// Upload configures the blob uploader.
	Upload UploadConfig `yaml:"upload"`

	// Plugins toggles the built-in command plugins.
	Plugins PluginsConfig `yaml:"plugins"`

	// HostConfig is the path of the JSONC file that config-override
	// commands edit. Empty disables the config-override plugin.
	HostConfig string `yaml:"host_config"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Console   *ConsoleConfig   `yaml:"console,omitempty"`
	Transport *TransportConfig `yaml:"transport,omitempty"`
	Session   *SessionConfig   `yaml:"session,omitempty"`
	Upload    *UploadConfig    `yaml:"upload,omitempty"`
	Plugins   *PluginsConfig   `yaml:"plugins,omitempty"`
}

// ConsoleConfig names the console deployment.
type ConsoleConfig struct {
	// Environment is the console environment used when a deep link
	// does not carry one (prod, stage, qa, dev).
	// Default: prod
	Environment string `yaml:"environment"`

	// Domain is the console's DNS domain.
	// Default: griffon.adobe.com
	Domain string `yaml:"domain"`

	// OrgID is the host organization identifier, used when a deep
	// link does not carry one.
	OrgID string `yaml:"org_id"`
}

// TransportConfig configures the event channel.
type TransportConfig struct {
	// Strategy is "websocket" or "datachannel".
	// Default: websocket
	Strategy string `yaml:"strategy"`

	// SignalingURL is the HTTP endpoint that exchanges SDP offers
	// and answers for the datachannel strategy.
	SignalingURL string `yaml:"signaling_url"`

	// ICEServers lists STUN/TURN URLs for the datachannel strategy.
	ICEServers []string `yaml:"ice_servers"`

	// Endpoint, when set, replaces the scheme and host of every
	// channel URL (for example ws://127.0.0.1:8790 for a local mock
	// console). Path and query are kept.
	Endpoint string `yaml:"endpoint"`

	// BlobURL, when set, replaces the blob service base URL derived
	// from the console environment and domain.
	BlobURL string `yaml:"blob_url"`
}

// SessionConfig configures the session controller.
type SessionConfig struct {
	// QueueCapacity bounds each of the inbound and outbound queues.
	// Default: 200
	QueueCapacity int `yaml:"queue_capacity"`

	// BootTimeout is how long events are buffered while waiting for
	// a session deep link before they are discarded.
	// Default: 5s
	BootTimeout string `yaml:"boot_timeout"`

	// ChunkThreshold is the serialized event size in bytes above
	// which events are split into chunks.
	// Default: 32768
	ChunkThreshold int `yaml:"chunk_threshold"`

	// Compression applied to chunk data: none, lz4 or zstd.
	// Default: none
	Compression string `yaml:"compression"`
}

// UploadConfig configures the blob uploader.
type UploadConfig struct {
	// Timeout bounds each upload request.
	// Default: 30s
	Timeout string `yaml:"timeout"`
}

// PluginsConfig toggles the built-in plugins. Fields are pointers so
// an override section can switch a plugin off explicitly.
type PluginsConfig struct {
	ConfigOverride *bool `yaml:"config_override,omitempty"`
	Screenshot     *bool `yaml:"screenshot,omitempty"`
	LogForwarder   *bool `yaml:"log_forwarder,omitempty"`
	SyntheticEvent *bool `yaml:"synthetic_event,omitempty"`
}

// Enabled reports whether a plugin toggle is on. Unset means on.
func Enabled(toggle *bool) bool {
	return toggle == nil || *toggle
}

// Default returns the default configuration. Loaded files are merged
// on top of it.
func Default() *Config {
	return &Config{
		Environment: Development,
		Console: ConsoleConfig{
			Environment: "prod",
			Domain:      "griffon.adobe.com",
		},
		Transport: TransportConfig{
			Strategy: StrategyWebSocket,
		},
		Session: SessionConfig{
			QueueCapacity:  200,
			BootTimeout:    "5s",
			ChunkThreshold: 32 << 10,
			Compression:    "none",
		},
		Upload: UploadConfig{
			Timeout: "30s",
		},
	}
}

// Load loads configuration from the file named by INSPECT_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("INSPECT_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("INSPECT_CONFIG environment variable not set; " +
			"set it to the path of your inspect.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the matching
// environment section, and expands path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.ApplyEnvironmentOverrides()
	cfg.HostConfig = expandVars(cfg.HostConfig)
	cfg.Transport.Endpoint = expandVars(cfg.Transport.Endpoint)
	return cfg, nil
}

// ApplyEnvironmentOverrides merges the section matching Environment
// into the base values.
func (c *Config) ApplyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			off := false
			overrides = &ConfigOverrides{
				Console: &ConsoleConfig{Environment: "prod"},
				Plugins: &PluginsConfig{LogForwarder: &off},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Console != nil {
		setString(&c.Console.Environment, overrides.Console.Environment)
		setString(&c.Console.Domain, overrides.Console.Domain)
		setString(&c.Console.OrgID, overrides.Console.OrgID)
	}

	if overrides.Transport != nil {
		setString(&c.Transport.Strategy, overrides.Transport.Strategy)
		setString(&c.Transport.SignalingURL, overrides.Transport.SignalingURL)
		setString(&c.Transport.Endpoint, overrides.Transport.Endpoint)
		setString(&c.Transport.BlobURL, overrides.Transport.BlobURL)
		if len(overrides.Transport.ICEServers) > 0 {
			c.Transport.ICEServers = overrides.Transport.ICEServers
		}
	}

	if overrides.Session != nil {
		if overrides.Session.QueueCapacity != 0 {
			c.Session.QueueCapacity = overrides.Session.QueueCapacity
		}
		if overrides.Session.ChunkThreshold != 0 {
			c.Session.ChunkThreshold = overrides.Session.ChunkThreshold
		}
		setString(&c.Session.BootTimeout, overrides.Session.BootTimeout)
		setString(&c.Session.Compression, overrides.Session.Compression)
	}

	if overrides.Upload != nil {
		setString(&c.Upload.Timeout, overrides.Upload.Timeout)
	}

	if overrides.Plugins != nil {
		setBool(&c.Plugins.ConfigOverride, overrides.Plugins.ConfigOverride)
		setBool(&c.Plugins.Screenshot, overrides.Plugins.Screenshot)
		setBool(&c.Plugins.LogForwarder, overrides.Plugins.LogForwarder)
		setBool(&c.Plugins.SyntheticEvent, overrides.Plugins.SyntheticEvent)
	}
}

func setString(target *string, value string) {
	if value != "" {
		*target = value
	}
}

func setBool(target **bool, value *bool) {
	if value != nil {
		*target = value
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the process
// environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// BootTimeoutDuration returns the parsed session.boot_timeout. Call
// Validate first; an unparseable value yields zero.
func (c *Config) BootTimeoutDuration() time.Duration {
	duration, _ := time.ParseDuration(c.Session.BootTimeout)
	return duration
}

// UploadTimeoutDuration returns the parsed upload.timeout.
func (c *Config) UploadTimeoutDuration() time.Duration {
	duration, _ := time.ParseDuration(c.Upload.Timeout)
	return duration
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Console.Environment == "" {
		errs = append(errs, errors.New("console.environment is required"))
	}
	if c.Console.Domain == "" {
		errs = append(errs, errors.New("console.domain is required"))
	}

	switch c.Transport.Strategy {
	case StrategyWebSocket:
	case StrategyDataChannel:
		if c.Transport.SignalingURL == "" {
			errs = append(errs, errors.New("transport.signaling_url is required for the datachannel strategy"))
		}
	default:
		errs = append(errs, fmt.Errorf("transport.strategy must be one of: [%s %s]", StrategyWebSocket, StrategyDataChannel))
	}

	if c.Session.QueueCapacity <= 0 {
		errs = append(errs, fmt.Errorf("session.queue_capacity must be positive, got %d", c.Session.QueueCapacity))
	}
	if c.Session.ChunkThreshold < 1024 {
		errs = append(errs, fmt.Errorf("session.chunk_threshold must be at least 1024, got %d", c.Session.ChunkThreshold))
	}
	if !slices.Contains(compressionValues, c.Session.Compression) {
		errs = append(errs, fmt.Errorf("session.compression must be one of: %v", compressionValues))
	}
	if err := positiveDuration("session.boot_timeout", c.Session.BootTimeout); err != nil {
		errs = append(errs, err)
	}
	if err := positiveDuration("upload.timeout", c.Upload.Timeout); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func positiveDuration(field, value string) error {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if duration <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, value)
	}
	return nil
}
