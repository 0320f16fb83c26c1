// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/inspect/cmd/inspect/cli"
	"github.com/bureau-foundation/inspect/lib/version"
)

func versionCommand() *cli.Command {
	var short bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVar(&short, "short", false, "print only the version number")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			return printVersion(os.Stdout, short)
		},
	}
}

func printVersion(w io.Writer, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, version.Short())
		return err
	}
	_, err := fmt.Fprintf(w, "inspect %s\n", version.Full())
	return err
}
