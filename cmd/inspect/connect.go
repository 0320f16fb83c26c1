// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/inspect/blob"
	"github.com/bureau-foundation/inspect/cmd/inspect/cli"
	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/handshake"
	"github.com/bureau-foundation/inspect/lib/clock"
	"github.com/bureau-foundation/inspect/lib/config"
	"github.com/bureau-foundation/inspect/lib/tui"
	"github.com/bureau-foundation/inspect/session"
	"github.com/bureau-foundation/inspect/transport"
)

type connectParams struct {
	configPath  string
	environment string
	orgID       string
	domain      string
	endpoint    string
	strategy    string
	hostConfig  string
	logLevel    string
	noTUI       bool
}

func connectCommand() *cli.Command {
	var params connectParams
	return &cli.Command{
		Name:    "connect",
		Summary: "Join an inspection session from a deep link",
		Description: `Join the inspection session named by a console deep link.

The console's PIN is requested unless the link carries a token. The
session runs until the console ends it, a non-retryable error occurs,
or the user quits. On a terminal a full-screen status view is shown;
use --no-tui for plain log output.`,
		Usage: "inspect connect [flags] <deeplink>",
		Examples: []cli.Example{
			{
				Description: "Join a production session",
				Command:     "inspect connect --org-id 0123456789ABCDEF01234567@AdobeOrg 'inspect://?sessionId=...'",
			},
			{
				Description: "Join through a local console mock",
				Command:     "inspect connect --endpoint ws://127.0.0.1:8787 --no-tui 'inspect://?sessionId=...&env=dev'",
			},
		},
		Flags: func() *pflag.FlagSet {
			params = connectParams{}
			flagSet := pflag.NewFlagSet("connect", pflag.ContinueOnError)
			flagSet.StringVarP(&params.configPath, "config", "c", "", "path to inspect.yaml (default: $INSPECT_CONFIG, else built-in defaults)")
			flagSet.StringVar(&params.environment, "environment", "", "console environment: prod, stage, qa or dev")
			flagSet.StringVar(&params.orgID, "org-id", "", "organization id used when the link has none")
			flagSet.StringVar(&params.domain, "domain", "", "console domain")
			flagSet.StringVar(&params.endpoint, "endpoint", "", "dial this scheme://host instead of the console host")
			flagSet.StringVar(&params.strategy, "strategy", "", "transport strategy: websocket or datachannel")
			flagSet.StringVar(&params.hostConfig, "host-config", "", "JSONC host configuration file")
			flagSet.StringVar(&params.logLevel, "log-level", "info", "log level: debug, info, warn or error")
			flagSet.BoolVar(&params.noTUI, "no-tui", false, "log to stderr instead of showing the status view")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one deep link argument, got %d", len(args))
			}
			return runConnect(ctx, args[0], params)
		},
	}
}

// loadConnectConfig reads the configuration file, if any, and applies
// command-line overrides.
func loadConnectConfig(params connectParams) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case params.configPath != "":
		cfg, err = config.LoadFile(params.configPath)
	case os.Getenv("INSPECT_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
		cfg.ApplyEnvironmentOverrides()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	overrides := []struct {
		target *string
		value  string
	}{
		{&cfg.Console.Environment, params.environment},
		{&cfg.Console.OrgID, params.orgID},
		{&cfg.Console.Domain, params.domain},
		{&cfg.Transport.Endpoint, params.endpoint},
		{&cfg.Transport.Strategy, params.strategy},
		{&cfg.HostConfig, params.hostConfig},
	}
	for _, override := range overrides {
		if override.value != "" {
			*override.target = override.value
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildStrategy returns the configured dialing strategy, redirected to
// the endpoint override if one is set.
func buildStrategy(cfg *config.Config, logger *slog.Logger) (transport.Strategy, error) {
	var strategy transport.Strategy
	switch cfg.Transport.Strategy {
	case config.StrategyWebSocket:
		strategy = transport.NewWebSocketStrategy(logger)
	case config.StrategyDataChannel:
		strategy = transport.NewDataChannelStrategy(
			transport.NewHTTPSignaler(cfg.Transport.SignalingURL, nil),
			transport.DataChannelConfig{
				ICE:    transport.ICEConfigFromURLs(cfg.Transport.ICEServers),
				Logger: logger,
			},
		)
	default:
		return nil, fmt.Errorf("unknown transport strategy %q", cfg.Transport.Strategy)
	}
	if cfg.Transport.Endpoint == "" {
		return strategy, nil
	}
	return transport.Redirect(strategy, cfg.Transport.Endpoint)
}

func runConnect(ctx context.Context, deepLink string, params connectParams) error {
	cfg, err := loadConnectConfig(params)
	if err != nil {
		return err
	}
	level, err := cli.ParseLevel(params.logLevel)
	if err != nil {
		return err
	}
	environment, err := handshake.ParseEnvironment(cfg.Console.Environment)
	if err != nil {
		return err
	}
	compression, err := event.ParseCompression(cfg.Session.Compression)
	if err != nil {
		return err
	}

	useTUI := !params.noTUI &&
		term.IsTerminal(int(os.Stdin.Fd())) &&
		term.IsTerminal(int(os.Stdout.Fd()))

	// controller is assigned below; the UI callbacks only run after
	// the program starts.
	var controller *session.Controller

	var (
		logger    *slog.Logger
		presenter session.Presenter
		prompter  handshake.PINPrompter
		program   *tui.Program
		terminal  *terminalPresenter
	)
	if useTUI {
		program = tui.NewProgram(tui.AppConfig{
			OnRetry:     func() { controller.StartSession(ctx) },
			OnTerminate: func() { controller.TerminateSession() },
		}, tea.WithAltScreen())
		logger = slog.New(tui.NewLogHandler(program, level))
		presenter = program
		prompter = program
	} else {
		logger = cli.NewCommandLogger(level)
		terminal = newTerminalPresenter(logger, clock.Real())
		presenter = terminal
		prompter = handshake.NewTerminalPrompter()
	}
	logger = logger.With("command", "connect")

	strategy, err := buildStrategy(cfg, logger)
	if err != nil {
		return err
	}
	store, err := loadHostConfig(cfg.HostConfig)
	if err != nil {
		return err
	}

	controller = session.New(session.Config{
		Strategy: strategy,
		Handshake: handshake.New(handshake.Config{
			Prompter: prompter,
			Domain:   cfg.Console.Domain,
			Logger:   logger,
		}),
		Presenter:     presenter,
		QueueCapacity: cfg.Session.QueueCapacity,
		BootTimeout:   cfg.BootTimeoutDuration(),
		Chunker:       event.NewChunker(cfg.Session.ChunkThreshold, compression),
		OrgID:         cfg.Console.OrgID,
		Environment:   environment,
		Logger:        logger,
	})
	defer controller.Close()

	capture := func() string { return describeSession(controller, store) }
	if useTUI {
		capture = program.Snapshot
	}
	uploader := blob.NewUploader(blob.Config{
		Domain:  cfg.Console.Domain,
		BaseURL: cfg.Transport.BlobURL,
		Timeout: cfg.UploadTimeoutDuration(),
		Logger:  logger,
	})
	attachHost(controller, hostConfig{
		plugins:  cfg.Plugins,
		store:    store,
		uploader: uploader,
		capture:  capture,
		logger:   logger,
	})
	controller.Start()

	if useTUI {
		started := make(chan error, 1)
		go func() {
			err := controller.StartSessionFromDeepLink(ctx, deepLink)
			if err != nil {
				program.Quit()
			}
			started <- err
		}()
		stopQuit := context.AfterFunc(ctx, program.Quit)
		defer stopQuit()

		runErr := program.Run()
		controller.TerminateSession()
		return errors.Join(runErr, <-started)
	}

	terminal.retry = func() { controller.StartSession(ctx) }
	terminal.terminate = controller.TerminateSession
	if err := controller.StartSessionFromDeepLink(ctx, deepLink); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		controller.TerminateSession()
	case <-terminal.terminated:
	}
	return nil
}
