// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// inspect joins a remote inspection session from the command line. It
// stands in for a host application: the session's plugins act on this
// process, its log output and its host configuration file.
//
// Usage:
//
//	inspect connect [flags] <deeplink>
//	inspect validate [flags] <url>
//	inspect version
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/inspect/lib/process"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCommand().Execute(ctx, os.Args[1:])
}
