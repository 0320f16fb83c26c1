// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/bureau-foundation/inspect/lib/codec"
)

// Compile-time interface checks.
var (
	_ Strategy = (*DataChannelStrategy)(nil)
	_ Conn     = (*dataChannelConn)(nil)
)

// dataChannelLabel names the single channel each session opens.
const dataChannelLabel = "inspect-events"

// dataChannelCloseGrace lets a close frame drain before the
// PeerConnection is torn down.
const dataChannelCloseGrace = 250 * time.Millisecond

type frameKind uint8

const (
	frameData  frameKind = 1
	frameClose frameKind = 2
)

// frame wraps every data-channel message.
type frame struct {
	Kind   frameKind `cbor:"1,keyasint"`
	Body   []byte    `cbor:"2,keyasint,omitempty"`
	Code   int       `cbor:"3,keyasint,omitempty"`
	Reason string    `cbor:"4,keyasint,omitempty"`
}

// DataChannelStrategy connects over a WebRTC data channel negotiated
// through a Signaler. Signaling is vanilla ICE: all candidates are
// gathered before the offer is sent, so one exchange suffices.
type DataChannelStrategy struct {
	signaler Signaler
	config   DataChannelConfig
	logger   *slog.Logger
}

// NewDataChannelStrategy returns a strategy that signals through
// signaler.
func NewDataChannelStrategy(signaler Signaler, config DataChannelConfig) *DataChannelStrategy {
	config = config.withDefaults()
	return &DataChannelStrategy{
		signaler: signaler,
		config:   config,
		logger:   config.Logger.With("strategy", "datachannel"),
	}
}

// Dial offers a data channel for channelURL and waits for it to open.
// A signaling rejection carrying a close code returns a *CloseError.
func (s *DataChannelStrategy) Dial(ctx context.Context, channelURL string) (Conn, error) {
	peer, err := newPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("creating PeerConnection: %w", err)
	}

	ordered := true
	channel, err := peer.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
	if err != nil {
		peer.Close()
		return nil, fmt.Errorf("creating data channel: %w", err)
	}
	conn := newDataChannelConn(peer, channel, s.logger)
	opened := make(chan struct{})
	channel.OnOpen(func() { close(opened) })

	offer, err := peer.CreateOffer(nil)
	if err != nil {
		peer.Close()
		return nil, fmt.Errorf("creating SDP offer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(offer); err != nil {
		peer.Close()
		return nil, fmt.Errorf("setting local description: %w", err)
	}
	if err := waitFor(ctx, gatherComplete, s.config.GatherTimeout, "ICE gathering"); err != nil {
		peer.Close()
		return nil, err
	}

	answer, err := s.signaler.Exchange(ctx, channelURL, peer.LocalDescription().SDP)
	if err != nil {
		peer.Close()
		return nil, err
	}
	if err := peer.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer}); err != nil {
		peer.Close()
		return nil, fmt.Errorf("setting remote description: %w", err)
	}

	if err := waitFor(ctx, opened, s.config.OpenTimeout, "data channel open"); err != nil {
		peer.Close()
		return nil, err
	}
	s.logger.Debug("data channel open")
	return conn, nil
}

func waitFor(ctx context.Context, ready <-chan struct{}, timeout time.Duration, what string) error {
	select {
	case <-ready:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%s timed out after %s", what, timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dataChannelConn adapts a pion data channel to Conn. Inbound frames
// are delivered by pion's OnMessage callback into a buffered channel.
type dataChannelConn struct {
	peer    *webrtc.PeerConnection
	channel *webrtc.DataChannel
	logger  *slog.Logger

	incoming chan []byte
	done     chan struct{}

	mutex     sync.Mutex
	closeOnce sync.Once
	// remoteClose is the peer's close frame, if one arrived.
	remoteClose *CloseError
}

func newDataChannelConn(peer *webrtc.PeerConnection, channel *webrtc.DataChannel, logger *slog.Logger) *dataChannelConn {
	conn := &dataChannelConn{
		peer:     peer,
		channel:  channel,
		logger:   logger,
		incoming: make(chan []byte, 256),
		done:     make(chan struct{}),
	}
	channel.OnMessage(conn.handleMessage)
	channel.OnClose(conn.shutdown)
	peer.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed || state == webrtc.PeerConnectionStateClosed {
			conn.shutdown()
		}
	})
	return conn
}

func (c *dataChannelConn) handleMessage(message webrtc.DataChannelMessage) {
	var decoded frame
	if err := codec.Unmarshal(message.Data, &decoded); err != nil {
		c.logger.Warn("discarding undecodable frame", "error", err)
		return
	}
	switch decoded.Kind {
	case frameData:
		select {
		case c.incoming <- decoded.Body:
		case <-c.done:
		}
	case frameClose:
		c.mutex.Lock()
		c.remoteClose = &CloseError{Code: decoded.Code, Reason: decoded.Reason}
		c.mutex.Unlock()
		c.shutdown()
		// pion deadlocks if a channel is closed from inside its own
		// message handler.
		go c.release()
	default:
		c.logger.Warn("discarding frame of unknown kind", "kind", decoded.Kind)
	}
}

func (c *dataChannelConn) WriteMessage(data []byte) error {
	encoded, err := codec.Marshal(frame{Kind: frameData, Body: data})
	if err != nil {
		return err
	}
	return c.channel.Send(encoded)
}

// ReadMessage returns queued messages before reporting a close.
func (c *dataChannelConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-c.incoming:
		return data, nil
	default:
	}
	select {
	case data := <-c.incoming:
		return data, nil
	case <-c.done:
		select {
		case data := <-c.incoming:
			return data, nil
		default:
		}
		c.mutex.Lock()
		defer c.mutex.Unlock()
		if c.remoteClose != nil {
			return nil, c.remoteClose
		}
		return nil, io.EOF
	}
}

// Close sends a close frame, then tears down the channel and peer.
func (c *dataChannelConn) Close(code int, reason string) error {
	var err error
	select {
	case <-c.done:
	default:
		encoded, marshalErr := codec.Marshal(frame{Kind: frameClose, Code: code, Reason: reason})
		if marshalErr == nil {
			err = c.channel.Send(encoded)
		}
	}
	c.shutdown()
	time.AfterFunc(dataChannelCloseGrace, c.release)
	return err
}

func (c *dataChannelConn) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *dataChannelConn) release() {
	c.channel.Close()
	c.peer.Close()
}

// Accepted is a console-side data channel and the channel URL its
// offer named.
type Accepted struct {
	ChannelURL string
	Conn       Conn
}

// DataChannelListener answers data-channel offers on the console side.
type DataChannelListener struct {
	config   DataChannelConfig
	logger   *slog.Logger
	accepted chan Accepted

	mutex  sync.Mutex
	peers  []*webrtc.PeerConnection
	closed bool
}

// NewDataChannelListener returns a listener ready to answer offers.
func NewDataChannelListener(config DataChannelConfig) *DataChannelListener {
	config = config.withDefaults()
	return &DataChannelListener{
		config:   config,
		logger:   config.Logger.With("component", "datachannel-listener"),
		accepted: make(chan Accepted, 16),
	}
}

// Answer accepts an SDP offer for channelURL and returns the complete
// answer. The resulting connection is delivered by Accept once its
// channel opens.
func (l *DataChannelListener) Answer(ctx context.Context, channelURL, offerSDP string) (string, error) {
	peer, err := newPeerConnection(l.config)
	if err != nil {
		return "", fmt.Errorf("creating PeerConnection: %w", err)
	}

	l.mutex.Lock()
	if l.closed {
		l.mutex.Unlock()
		peer.Close()
		return "", io.ErrClosedPipe
	}
	l.peers = append(l.peers, peer)
	l.mutex.Unlock()

	peer.OnDataChannel(func(channel *webrtc.DataChannel) {
		conn := newDataChannelConn(peer, channel, l.logger)
		channel.OnOpen(func() {
			select {
			case l.accepted <- Accepted{ChannelURL: channelURL, Conn: conn}:
			default:
				l.logger.Warn("accept backlog full, dropping data channel")
				conn.Close(CloseConnectionLimit, "backlog full")
			}
		})
	})

	if err := peer.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}); err != nil {
		peer.Close()
		return "", fmt.Errorf("setting remote description: %w", err)
	}
	answer, err := peer.CreateAnswer(nil)
	if err != nil {
		peer.Close()
		return "", fmt.Errorf("creating SDP answer: %w", err)
	}
	gatherComplete := webrtc.GatheringCompletePromise(peer)
	if err := peer.SetLocalDescription(answer); err != nil {
		peer.Close()
		return "", fmt.Errorf("setting local description: %w", err)
	}
	if err := waitFor(ctx, gatherComplete, l.config.GatherTimeout, "ICE gathering"); err != nil {
		peer.Close()
		return "", err
	}
	return peer.LocalDescription().SDP, nil
}

// Accept returns the next opened data channel.
func (l *DataChannelListener) Accept(ctx context.Context) (Accepted, error) {
	select {
	case accepted := <-l.accepted:
		return accepted, nil
	case <-ctx.Done():
		return Accepted{}, ctx.Err()
	}
}

// Close tears down every PeerConnection the listener created.
func (l *DataChannelListener) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.closed = true
	for _, peer := range l.peers {
		peer.Close()
	}
	l.peers = nil
	return nil
}
