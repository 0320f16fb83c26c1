// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"testing"
)

func TestDecodeResponse(t *testing.T) {
	var body struct {
		ID string `json:"id"`
	}
	if err := DecodeResponse(strings.NewReader(`{"id":"blob-1"}`), &body); err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if body.ID != "blob-1" {
		t.Fatalf("ID = %q, want blob-1", body.ID)
	}

	if err := DecodeResponse(strings.NewReader(`not json`), &body); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestReadResponseIsBounded(t *testing.T) {
	oversized := bytes.Repeat([]byte("a"), int(MaxResponseSize)+100)
	data, err := ReadResponse(bytes.NewReader(oversized))
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if int64(len(data)) != MaxResponseSize {
		t.Fatalf("read %d bytes, want %d", len(data), MaxResponseSize)
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("reading frame: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"broken pipe", syscall.EPIPE, true},
		{"reset", fmt.Errorf("write: %w", syscall.ECONNRESET), true},
		{"other", errors.New("handshake failed"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Fatalf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}
