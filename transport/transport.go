// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/lib/netutil"
)

// Conn is an established message channel produced by a Strategy.
type Conn interface {
	// WriteMessage sends one complete message. Callers serialize
	// writes.
	WriteMessage(data []byte) error

	// ReadMessage blocks for the next message. When the peer closes
	// the channel with a code it returns a *CloseError.
	ReadMessage() ([]byte, error)

	// Close sends a close with code and reason where the wire supports
	// it and releases the connection. A pending ReadMessage returns.
	Close(code int, reason string) error
}

// Strategy opens connections to a channel URL.
type Strategy interface {
	Dial(ctx context.Context, channelURL string) (Conn, error)
}

// Delegate receives Transport lifecycle callbacks. Callbacks run on
// transport goroutines and must not block for long; the session
// controller hands them to its own queues.
type Delegate interface {
	// Connected fires once the connection is Open.
	Connected()

	// Disconnected fires once per Connect when the connection reaches
	// Closed, including after a failed dial. wasClean is true when
	// the close was initiated locally or carried a close frame.
	Disconnected(code int, reason string, wasClean bool)

	// Error reports a failure that is not a close code: a dial error
	// or a broken read. Disconnected follows.
	Error(err error)

	// MessageReceived delivers each complete inbound event.
	MessageReceived(e event.Event)

	// StateChanged fires on every state transition.
	StateChanged(state State)
}

// Config holds the dependencies of a Transport.
type Config struct {
	// Strategy dials the channel. Required.
	Strategy Strategy

	// Delegate receives callbacks. Required.
	Delegate Delegate

	// Chunker splits outgoing events. Nil uses the default threshold
	// without compression.
	Chunker *event.Chunker

	// Reassembler rebuilds incoming chunks. Nil uses the default.
	Reassembler *event.Reassembler

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Transport manages one connection at a time to the console.
type Transport struct {
	strategy    Strategy
	delegate    Delegate
	chunker     *event.Chunker
	reassembler *event.Reassembler
	logger      *slog.Logger

	mutex      sync.Mutex
	state      State
	conn       Conn
	cancelDial context.CancelFunc
	// generation increments on every Connect so that goroutines of a
	// superseded connection stop reporting.
	generation uint64
	// closing is set by Disconnect for the current generation.
	closing bool

	// writeMutex serializes Send. It is never held together with mutex.
	writeMutex sync.Mutex
}

// New creates a Transport in StateUnknown.
func New(config Config) *Transport {
	if config.Strategy == nil {
		panic("transport: Config.Strategy is required")
	}
	if config.Delegate == nil {
		panic("transport: Config.Delegate is required")
	}
	chunker := config.Chunker
	if chunker == nil {
		chunker = event.NewChunker(event.DefaultChunkThreshold, event.CompressionNone)
	}
	reassembler := config.Reassembler
	if reassembler == nil {
		reassembler = event.NewReassembler(event.DefaultMaxPending)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		strategy:    config.Strategy,
		delegate:    config.Delegate,
		chunker:     chunker,
		reassembler: reassembler,
		logger:      logger.With("component", "transport"),
	}
}

// State returns the current state.
func (t *Transport) State() State {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.state
}

// Connect starts connecting to channelURL in the background. It is a
// no-op while the transport is Connecting or Open.
func (t *Transport) Connect(channelURL string) {
	t.mutex.Lock()
	if t.state.Active() {
		t.mutex.Unlock()
		t.logger.Debug("connect ignored", "state", t.State())
		return
	}
	t.generation++
	generation := t.generation
	t.closing = false
	ctx, cancel := context.WithCancel(context.Background())
	t.cancelDial = cancel
	t.setStateLocked(StateConnecting)
	t.mutex.Unlock()

	t.delegate.StateChanged(StateConnecting)
	go t.dial(ctx, generation, channelURL)
}

func (t *Transport) dial(ctx context.Context, generation uint64, channelURL string) {
	conn, err := t.strategy.Dial(ctx, channelURL)

	t.mutex.Lock()
	if generation != t.generation {
		t.mutex.Unlock()
		if conn != nil {
			conn.Close(CloseNormal, "superseded")
		}
		return
	}
	t.cancelDial = nil
	if err != nil || t.closing {
		closing := t.closing
		t.setStateLocked(StateClosed)
		t.mutex.Unlock()
		if conn != nil {
			conn.Close(CloseNormal, "")
		}

		t.delegate.StateChanged(StateClosed)
		if closing {
			t.delegate.Disconnected(CloseNormal, "", true)
			return
		}
		var refusal *CloseError
		if errors.As(err, &refusal) {
			t.logger.Info("channel refused", "code", refusal.Code, "reason", refusal.Reason)
			t.delegate.Disconnected(refusal.Code, refusal.Reason, true)
			return
		}
		t.logger.Warn("dial failed", "error", err)
		t.delegate.Error(fmt.Errorf("dialing channel: %w", err))
		t.delegate.Disconnected(CloseAbnormal, err.Error(), false)
		return
	}
	t.conn = conn
	t.setStateLocked(StateOpen)
	t.mutex.Unlock()

	t.reassembler.Reset()
	t.logger.Info("channel open")
	t.delegate.StateChanged(StateOpen)
	t.delegate.Connected()
	t.readLoop(generation, conn)
}

// readLoop delivers inbound events until the connection ends.
func (t *Transport) readLoop(generation uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			t.finish(generation, conn, err)
			return
		}

		incoming, err := event.Unmarshal(data)
		if err != nil {
			t.logger.Warn("discarding malformed message", "error", err, "bytes", len(data))
			continue
		}
		complete, done, err := t.reassembler.Add(incoming)
		if err != nil {
			t.logger.Warn("discarding chunk", "error", err)
			continue
		}
		if done {
			t.delegate.MessageReceived(complete)
		}
	}
}

// finish moves the transport to Closed after the read loop ends and
// reports how the channel closed.
func (t *Transport) finish(generation uint64, conn Conn, readErr error) {
	t.mutex.Lock()
	if generation != t.generation {
		t.mutex.Unlock()
		return
	}
	closing := t.closing
	t.conn = nil
	t.setStateLocked(StateClosed)
	t.mutex.Unlock()

	var closeErr *CloseError
	code, reason, clean := CloseAbnormal, readErr.Error(), false
	switch {
	case errors.As(readErr, &closeErr):
		code, reason, clean = closeErr.Code, closeErr.Reason, true
	case closing:
		code, reason, clean = CloseNormal, "", true
	}

	if !clean && !netutil.IsExpectedCloseError(readErr) {
		t.logger.Warn("channel read failed", "error", readErr)
		t.delegate.Error(fmt.Errorf("reading channel: %w", readErr))
	}
	if !closing {
		conn.Close(code, "")
	}

	t.logger.Info("channel closed", "code", code, "reason", reason, "clean", clean)
	t.delegate.StateChanged(StateClosed)
	t.delegate.Disconnected(code, reason, clean)
}

// Disconnect closes the connection in the background. Delegate
// callbacks report the outcome. It is a no-op unless the transport is
// Connecting or Open.
func (t *Transport) Disconnect() {
	t.mutex.Lock()
	if !t.state.Active() || t.closing {
		t.mutex.Unlock()
		return
	}
	t.closing = true
	conn := t.conn
	cancel := t.cancelDial
	t.setStateLocked(StateClosing)
	t.mutex.Unlock()

	t.delegate.StateChanged(StateClosing)
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		go func() {
			if err := conn.Close(CloseNormal, ""); err != nil {
				t.logger.Debug("close failed", "error", err)
			}
		}()
	}
}

// Send writes e, chunked if needed. It returns ErrNotConnected unless
// the transport is Open.
func (t *Transport) Send(e event.Event) error {
	t.mutex.Lock()
	conn := t.conn
	state := t.state
	t.mutex.Unlock()
	if state != StateOpen || conn == nil {
		return ErrNotConnected
	}

	messages, err := t.chunker.Split(e)
	if err != nil {
		return err
	}

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()
	for index, message := range messages {
		if err := conn.WriteMessage(message); err != nil {
			return fmt.Errorf("writing event %s message %d of %d: %w", e.ID, index+1, len(messages), err)
		}
	}
	return nil
}

func (t *Transport) setStateLocked(state State) {
	if t.state != state {
		t.logger.Debug("state change", "from", t.state, "to", state)
	}
	t.state = state
}
