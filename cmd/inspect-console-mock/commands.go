// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/plugins"
	"github.com/bureau-foundation/inspect/transport"
)

const commandHelp = `commands:
  screenshot                          capture and upload the client's view
  logs on|off                         start or stop log forwarding
  config KEY=VALUE [KEY=VALUE ...]    override host config (VALUE null deletes)
  fake NAME TYPE SOURCE [DATA]        inject a host event (DATA is a YAML/JSON map)
  close [CODE]                        close every client channel (default 1000)
  clients                             list connected clients
  help                                show this list`

// operation is one parsed stdin line.
type operation struct {
	// command is sent to every client when non-nil.
	command *event.Event

	// closeCode closes every client when non-zero.
	closeCode int

	list bool
	help bool
}

// parseOperation turns a stdin line into an operation. Blank lines
// parse to the zero operation.
func parseOperation(line string) (operation, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return operation{}, nil
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "help", "?":
		return operation{help: true}, nil

	case "clients":
		return operation{list: true}, nil

	case "screenshot":
		return control(plugins.CommandScreenshot, nil), nil

	case "logs":
		if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
			return operation{}, fmt.Errorf("usage: logs on|off")
		}
		return control(plugins.CommandLogForwarding, map[string]any{"enable": args[0] == "on"}), nil

	case "config":
		if len(args) == 0 {
			return operation{}, fmt.Errorf("usage: config KEY=VALUE [KEY=VALUE ...]")
		}
		detail := make(map[string]any, len(args))
		for _, arg := range args {
			key, raw, ok := strings.Cut(arg, "=")
			if !ok || key == "" {
				return operation{}, fmt.Errorf("config argument %q is not KEY=VALUE", arg)
			}
			value, err := parseValue(raw)
			if err != nil {
				return operation{}, fmt.Errorf("config %s: %w", key, err)
			}
			detail[key] = value
		}
		return control(plugins.CommandConfigUpdate, detail), nil

	case "fake":
		if len(args) < 3 {
			return operation{}, fmt.Errorf("usage: fake NAME TYPE SOURCE [DATA]")
		}
		detail := map[string]any{
			"eventName":   args[0],
			"eventType":   args[1],
			"eventSource": args[2],
		}
		if len(args) > 3 {
			raw := strings.Join(args[3:], " ")
			var data map[string]any
			if err := yaml.Unmarshal([]byte(raw), &data); err != nil {
				return operation{}, fmt.Errorf("fake event data: %w", err)
			}
			detail["eventData"] = data
		}
		return control(plugins.CommandFakeEvent, detail), nil

	case "close":
		code := transport.CloseNormal
		if len(args) > 0 {
			parsed, err := strconv.Atoi(args[0])
			if err != nil || parsed < 1000 || parsed > 4999 {
				return operation{}, fmt.Errorf("close code %q must be a number in 1000-4999", args[0])
			}
			code = parsed
		}
		return operation{closeCode: code}, nil
	}
	return operation{}, fmt.Errorf("unknown command %q (type help)", name)
}

func control(command string, detail map[string]any) operation {
	e := event.NewControl(command, detail)
	return operation{command: &e}
}

// parseValue reads a config value as a YAML scalar or flow collection,
// so 3 is a number, true a boolean and null a deletion.
func parseValue(raw string) (any, error) {
	if raw == "" {
		return "", nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return nil, err
	}
	return value, nil
}

// readCommands executes stdin lines against mock until input ends or
// ctx is done. Feedback goes to feedback.
func readCommands(ctx context.Context, scanner *bufio.Scanner, mock *console, feedback io.Writer) {
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		execute(mock, scanner.Text(), feedback)
	}
}

func execute(mock *console, line string, feedback io.Writer) {
	op, err := parseOperation(line)
	if err != nil {
		fmt.Fprintln(feedback, err)
		return
	}
	switch {
	case op.help:
		fmt.Fprintln(feedback, commandHelp)
	case op.list:
		ids := mock.clientIDs()
		if len(ids) == 0 {
			fmt.Fprintln(feedback, "no clients connected")
		}
		for _, id := range ids {
			fmt.Fprintln(feedback, id)
		}
	case op.command != nil:
		delivered := mock.broadcast(*op.command)
		fmt.Fprintf(feedback, "%s sent to %d client(s)\n", op.command.CommandType(), delivered)
	case op.closeCode != 0:
		closed := mock.closeAll(op.closeCode, "closed by console")
		fmt.Fprintf(feedback, "closed %d client(s) with %d\n", closed, op.closeCode)
	}
}
