// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/lib/codec"
	"github.com/bureau-foundation/inspect/lib/testutil"
)

func loopbackConfig() DataChannelConfig {
	return DataChannelConfig{IncludeLoopback: true, Logger: discardLogger()}
}

func TestDataChannelRoundTrip(t *testing.T) {
	listener := NewDataChannelListener(loopbackConfig())
	t.Cleanup(func() { listener.Close() })

	delegate := newRecordingDelegate()
	transport := New(Config{
		Strategy: NewDataChannelStrategy(NewMemorySignaler(listener, nil), loopbackConfig()),
		Delegate: delegate,
		// Large events must stay under the SCTP message limit.
		Chunker: event.NewChunker(event.DefaultChunkThreshold, event.CompressionZstd),
		Logger:  discardLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	transport.Connect("wss://connect.example/client/v1?sessionId=s1")
	testutil.RequireReceive(t, delegate.connected, testTimeout, "Connected")
	accepted, err := listener.Accept(ctx)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !strings.Contains(accepted.ChannelURL, "sessionId=s1") {
		t.Fatalf("accepted channel URL = %s", accepted.ChannelURL)
	}
	console := accepted.Conn

	outgoing := event.New("com.example", "dump", map[string]any{"text": strings.Repeat("abc", 40000)})
	if err := transport.Send(outgoing); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// The console reassembles what it reads.
	reassembler := event.NewReassembler(0)
	for {
		data, err := console.ReadMessage()
		if err != nil {
			t.Fatalf("console ReadMessage: %v", err)
		}
		fragment, err := event.Unmarshal(data)
		if err != nil {
			t.Fatalf("console Unmarshal: %v", err)
		}
		complete, done, err := reassembler.Add(fragment)
		if err != nil {
			t.Fatalf("console reassembly: %v", err)
		}
		if done {
			if complete.ID != outgoing.ID {
				t.Fatalf("console reassembled %s, want %s", complete.ID, outgoing.ID)
			}
			break
		}
	}

	command, _ := event.Marshal(event.NewControl(event.CommandStartForwarding, nil))
	if err := console.WriteMessage(command); err != nil {
		t.Fatalf("console WriteMessage: %v", err)
	}
	got := testutil.RequireReceive(t, delegate.messages, testTimeout, "MessageReceived")
	if !got.IsStartForwarding() {
		t.Fatalf("received %+v", got)
	}

	console.Close(CloseEventLimit, "limit")
	closed := testutil.RequireReceive(t, delegate.disconnected, testTimeout, "Disconnected")
	if closed.code != CloseEventLimit || !closed.wasClean {
		t.Fatalf("Disconnected = %+v, want clean %d", closed, CloseEventLimit)
	}
}

func TestDataChannelRefusedBySignaling(t *testing.T) {
	listener := NewDataChannelListener(loopbackConfig())
	t.Cleanup(func() { listener.Close() })

	refuse := func(string) *CloseError {
		return &CloseError{Code: CloseOrgMismatch, Reason: "wrong org"}
	}
	server := httptest.NewServer(SignalingHandler(listener, refuse))
	t.Cleanup(server.Close)

	delegate := newRecordingDelegate()
	transport := New(Config{
		Strategy: NewDataChannelStrategy(NewHTTPSignaler(server.URL, server.Client()), loopbackConfig()),
		Delegate: delegate,
		Logger:   discardLogger(),
	})

	transport.Connect("wss://connect.example/client/v1?sessionId=s1")
	got := testutil.RequireReceive(t, delegate.disconnected, testTimeout, "Disconnected")
	if got.code != CloseOrgMismatch || got.reason != "wrong org" {
		t.Fatalf("Disconnected = %+v, want %d", got, CloseOrgMismatch)
	}
}

func TestHTTPSignalerExchange(t *testing.T) {
	listener := NewDataChannelListener(loopbackConfig())
	t.Cleanup(func() { listener.Close() })
	server := httptest.NewServer(SignalingHandler(listener, nil))
	t.Cleanup(server.Close)

	delegate := newRecordingDelegate()
	transport := New(Config{
		Strategy: NewDataChannelStrategy(NewHTTPSignaler(server.URL, server.Client()), loopbackConfig()),
		Delegate: delegate,
		Logger:   discardLogger(),
	})
	transport.Connect("wss://connect.example/client/v1?sessionId=s2")
	testutil.RequireReceive(t, delegate.connected, testTimeout, "Connected")

	transport.Disconnect()
	got := testutil.RequireReceive(t, delegate.disconnected, testTimeout, "Disconnected")
	if got.code != CloseNormal || !got.wasClean {
		t.Fatalf("Disconnected = %+v, want clean 1000", got)
	}
}

func TestFrameEncoding(t *testing.T) {
	encoded, err := codec.Marshal(frame{Kind: frameClose, Code: CloseDeletedSession, Reason: "deleted"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded frame
	if err := codec.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Kind != frameClose || decoded.Code != CloseDeletedSession || decoded.Reason != "deleted" {
		t.Fatalf("decoded = %+v", decoded)
	}
}
