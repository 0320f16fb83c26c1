// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/inspect/cmd/inspect/cli"
	"github.com/bureau-foundation/inspect/handshake"
	"github.com/bureau-foundation/inspect/transport"
)

type validateParams struct {
	deepLink   bool
	jsonOutput bool
}

func validateCommand() *cli.Command {
	var params validateParams
	return &cli.Command{
		Name:    "validate",
		Summary: "Check a channel URL or session deep link",
		Description: `Validate a console channel URL (wss://connect.../client/v1?...) or,
with --deeplink, a session deep link. Prints the session details the
URL carries, or the reason it would be refused. Exits 1 when invalid.`,
		Usage: "inspect validate [flags] <url>",
		Examples: []cli.Example{
			{
				Description: "Check a channel URL",
				Command:     "inspect validate 'wss://connect.griffon.adobe.com/client/v1?sessionId=...&token=1234&orgId=...&clientId=...'",
			},
			{
				Description: "Check a deep link as JSON",
				Command:     "inspect validate --deeplink --json 'inspect://?sessionId=...'",
			},
		},
		Flags: func() *pflag.FlagSet {
			params = validateParams{}
			flagSet := pflag.NewFlagSet("validate", pflag.ContinueOnError)
			flagSet.BoolVar(&params.deepLink, "deeplink", false, "treat the argument as a session deep link")
			flagSet.BoolVar(&params.jsonOutput, "json", false, "print the result as JSON")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one URL argument, got %d", len(args))
			}
			return runValidate(os.Stdout, os.Stderr, args[0], params)
		},
	}
}

// validateResult is the --json output of validate.
type validateResult struct {
	Valid       bool   `json:"valid"`
	SessionID   string `json:"session_id,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	OrgID       string `json:"org_id,omitempty"`
	Environment string `json:"environment,omitempty"`
	HasToken    bool   `json:"has_token"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
}

func runValidate(stdout, stderr io.Writer, raw string, params validateParams) error {
	var (
		info handshake.SessionInfo
		err  error
	)
	if params.deepLink {
		info, err = handshake.ParseDeepLink(raw)
	} else {
		info, err = handshake.ValidateChannelURL(raw)
	}

	result := validateResult{
		Valid:       err == nil,
		SessionID:   info.SessionID,
		ClientID:    info.ClientID,
		OrgID:       info.OrgID,
		Environment: string(info.Environment),
		HasToken:    info.Token != "",
	}
	if err != nil {
		result.Error = err.Error()
		var connectionError *transport.ConnectionError
		if errors.As(err, &connectionError) {
			result.ErrorKind = connectionError.Name
		}
	}

	if params.jsonOutput {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		if encodeErr := encoder.Encode(result); encodeErr != nil {
			return encodeErr
		}
	} else if err != nil {
		fmt.Fprintf(stderr, "invalid: %v\n", err)
	} else {
		table := tabwriter.NewWriter(stdout, 2, 0, 2, ' ', 0)
		fmt.Fprintf(table, "session\t%s\n", result.SessionID)
		fmt.Fprintf(table, "client\t%s\n", valueOrDash(result.ClientID))
		fmt.Fprintf(table, "org\t%s\n", valueOrDash(result.OrgID))
		fmt.Fprintf(table, "environment\t%s\n", valueOrDash(result.Environment))
		fmt.Fprintf(table, "token\t%t\n", result.HasToken)
		table.Flush()
	}

	if err != nil {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

func valueOrDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
