// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// inspect-console-mock is a local stand-in for the inspection console,
// for demos and manual end-to-end runs of inspect connect. It accepts
// client channels over WebSocket (and, with --datachannel, over a
// WebRTC data channel negotiated through POST /signal), checks the
// PIN, enables forwarding, and prints every event it receives to
// stdout as one JSON object per line. It also implements the blob
// upload endpoint so screenshots can be fetched back from
// GET /blobs/{id}.
//
// Lines typed on stdin are sent to every connected client as console
// commands; type "help" for the list.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/inspect/cmd/inspect/cli"
	"github.com/bureau-foundation/inspect/lib/process"
	"github.com/bureau-foundation/inspect/lib/version"
	"github.com/bureau-foundation/inspect/transport"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		listenAddress string
		pin           string
		orgID         string
		maxClients    int
		dataChannel   bool
		iceServers    []string
		logLevel      string
		showVersion   bool
	)
	flagSet := pflag.NewFlagSet("inspect-console-mock", pflag.ContinueOnError)
	flagSet.StringVar(&listenAddress, "listen", "127.0.0.1:8787", "address to serve on")
	flagSet.StringVar(&pin, "pin", "1234", "PIN clients must present")
	flagSet.StringVar(&orgID, "org-id", "", "refuse clients of any other organization (close 4900)")
	flagSet.IntVar(&maxClients, "max-clients", 4, "clients allowed per session (close 4901 beyond)")
	flagSet.BoolVar(&dataChannel, "datachannel", false, "answer data-channel offers on POST /signal")
	flagSet.StringSliceVar(&iceServers, "ice-server", nil, "STUN/TURN URL for the data-channel listener (repeatable)")
	flagSet.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("inspect-console-mock %s\n", version.Info())
		return nil
	}
	if len(pin) != 4 {
		return fmt.Errorf("--pin must be four digits, got %q", pin)
	}
	level, err := cli.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logger := cli.NewCommandLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mock := newConsole(consoleConfig{
		PIN:        pin,
		OrgID:      orgID,
		MaxClients: maxClients,
		Output:     os.Stdout,
		Logger:     logger,
	})
	if dataChannel {
		listener := transport.NewDataChannelListener(transport.DataChannelConfig{
			ICE:             transport.ICEConfigFromURLs(iceServers),
			IncludeLoopback: true,
			Logger:          logger,
		})
		defer listener.Close()
		mock.enableDataChannel(ctx, listener)
	}

	networkListener, err := net.Listen("tcp", listenAddress)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           mock.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveDone := make(chan error, 1)
	go func() { serveDone <- server.Serve(networkListener) }()

	logger.Info("console mock listening",
		"endpoint", "ws://"+networkListener.Addr().String(),
		"blob_url", "http://"+networkListener.Addr().String(),
		"pin", pin,
		"datachannel", dataChannel,
	)
	go readCommands(ctx, bufio.NewScanner(os.Stdin), mock, os.Stderr)

	select {
	case <-ctx.Done():
	case err := <-serveDone:
		return err
	}
	logger.Info("shutting down")
	mock.closeAll(transport.CloseNormal, "console shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", "error", err)
	}
	return nil
}
