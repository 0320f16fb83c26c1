// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	websocketHandshakeTimeout = 15 * time.Second
	websocketWriteTimeout     = 10 * time.Second
	websocketPingInterval     = 30 * time.Second
	websocketPongTimeout      = 60 * time.Second
	// websocketCloseGrace is how long Close waits for the peer to
	// answer a close frame before dropping the TCP connection.
	websocketCloseGrace = 2 * time.Second
	// websocketReadLimit bounds one inbound message.
	websocketReadLimit = 32 << 20
)

// Compile-time interface checks.
var (
	_ Strategy = (*WebSocketStrategy)(nil)
	_ Conn     = (*websocketConn)(nil)
)

// WebSocketStrategy dials wss:// channel URLs.
type WebSocketStrategy struct {
	dialer       *websocket.Dialer
	pingInterval time.Duration
	pongTimeout  time.Duration
	logger       *slog.Logger
}

// WebSocketOption adjusts a WebSocketStrategy.
type WebSocketOption func(*WebSocketStrategy)

// WithPingInterval sets the keepalive ping interval and the matching
// pong deadline (twice the interval).
func WithPingInterval(interval time.Duration) WebSocketOption {
	return func(s *WebSocketStrategy) {
		s.pingInterval = interval
		s.pongTimeout = 2 * interval
	}
}

// NewWebSocketStrategy returns a strategy using gorilla/websocket.
func NewWebSocketStrategy(logger *slog.Logger, options ...WebSocketOption) *WebSocketStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	strategy := &WebSocketStrategy{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: websocketHandshakeTimeout,
		},
		pingInterval: websocketPingInterval,
		pongTimeout:  websocketPongTimeout,
		logger:       logger.With("strategy", "websocket"),
	}
	for _, option := range options {
		option(strategy)
	}
	return strategy
}

// Dial opens a websocket to channelURL. A rejected handshake returns
// an error carrying the HTTP status.
func (s *WebSocketStrategy) Dial(ctx context.Context, channelURL string) (Conn, error) {
	conn, response, err := s.dialer.DialContext(ctx, channelURL, nil)
	if err != nil {
		if response != nil {
			return nil, fmt.Errorf("websocket handshake rejected with HTTP %d: %w", response.StatusCode, err)
		}
		return nil, err
	}
	wrapped := newWebsocketConn(conn, s.pongTimeout)
	go wrapped.pingLoop(s.pingInterval, s.logger)
	return wrapped, nil
}

// AcceptWebSocket upgrades an HTTP request to a console-side Conn.
// Used by the mock console and tests.
func AcceptWebSocket(writer http.ResponseWriter, request *http.Request) (Conn, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(writer, request, nil)
	if err != nil {
		return nil, err
	}
	return newWebsocketConn(conn, 0), nil
}

// websocketConn adapts a gorilla connection to Conn. gorilla allows
// one concurrent writer, so messages, pings and close frames share
// writeMutex.
type websocketConn struct {
	conn       *websocket.Conn
	writeMutex sync.Mutex
	done       chan struct{}
	closeOnce  sync.Once
}

func newWebsocketConn(conn *websocket.Conn, pongTimeout time.Duration) *websocketConn {
	conn.SetReadLimit(websocketReadLimit)
	if pongTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongTimeout))
		})
	}
	return &websocketConn{conn: conn, done: make(chan struct{})}
}

func (c *websocketConn) WriteMessage(data []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(websocketWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *websocketConn) ReadMessage() ([]byte, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return nil, &CloseError{Code: closeErr.Code, Reason: closeErr.Text}
			}
			return nil, err
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close sends a close frame and drops the connection once the peer
// answers or the grace period passes.
func (c *websocketConn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMutex.Lock()
		err = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(websocketWriteTimeout))
		c.writeMutex.Unlock()
		time.AfterFunc(websocketCloseGrace, func() { c.conn.Close() })
	})
	return err
}

func (c *websocketConn) pingLoop(interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMutex.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(websocketWriteTimeout))
			c.writeMutex.Unlock()
			if err != nil {
				logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}
