// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import "github.com/bureau-foundation/inspect/cmd/inspect/cli"

func rootCommand() *cli.Command {
	return &cli.Command{
		Name:    "inspect",
		Summary: "Remote inspection session client",
		Description: `inspect connects this process to a remote inspection console.

Once the console enables forwarding, events produced here stream to it
in order, and console commands (configuration overrides, screen
captures, log forwarding, synthetic events) are executed locally.`,
		Subcommands: []*cli.Command{
			connectCommand(),
			validateCommand(),
			versionCommand(),
		},
	}
}
