// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package handshake

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// TerminalPrompter reads the PIN from a terminal with echo disabled.
// When In is not a terminal (a pipe in scripts and tests) it reads
// one line instead. An empty line cancels.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer

	// Reader overrides In for line-based input. Tests use it.
	Reader io.Reader
}

// NewTerminalPrompter prompts on stderr and reads stdin.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

const promptText = "Enter the 4-digit PIN shown in the console (empty to cancel): "

// PromptPIN implements PINPrompter.
func (p *TerminalPrompter) PromptPIN(ctx context.Context) (string, error) {
	if p.Out != nil {
		fmt.Fprint(p.Out, promptText)
	}

	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := p.readLine()
		done <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case read := <-done:
		if p.Out != nil && p.hidden() {
			fmt.Fprintln(p.Out)
		}
		if read.err != nil && read.err != io.EOF {
			return "", fmt.Errorf("reading PIN: %w", read.err)
		}
		pin := strings.TrimSpace(read.line)
		if pin == "" {
			return "", ErrCancelled
		}
		return pin, nil
	}
}

func (p *TerminalPrompter) hidden() bool {
	return p.Reader == nil && p.In != nil && term.IsTerminal(int(p.In.Fd()))
}

func (p *TerminalPrompter) readLine() (string, error) {
	if p.hidden() {
		secret, err := term.ReadPassword(int(p.In.Fd()))
		return string(secret), err
	}
	reader := p.Reader
	if reader == nil {
		if p.In == nil {
			return "", io.EOF
		}
		reader = p.In
	}
	return bufio.NewReader(reader).ReadString('\n')
}
