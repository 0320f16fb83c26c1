// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/handshake"
	"github.com/bureau-foundation/inspect/lib/clock"
	"github.com/bureau-foundation/inspect/lib/version"
	"github.com/bureau-foundation/inspect/plugin"
	"github.com/bureau-foundation/inspect/queue"
	"github.com/bureau-foundation/inspect/transport"
)

// DefaultBootTimeout is how long events are buffered while waiting
// for a session deep link.
const DefaultBootTimeout = 5 * time.Second

// uiBacklog bounds presenter calls waiting for the UI goroutine.
const uiBacklog = 64

// Config holds the dependencies of a Controller.
type Config struct {
	// Strategy dials the console. Required.
	Strategy transport.Strategy

	// Handshake authorizes new sessions. Required.
	Handshake *handshake.Handshake

	// Presenter shows status and errors. Nil logs them.
	Presenter Presenter

	// Clock drives the boot timer. Nil uses the real clock.
	Clock clock.Clock

	// QueueCapacity bounds each queue. Zero uses queue.DefaultCapacity.
	QueueCapacity int

	// BootTimeout is how long to wait for a deep link before
	// discarding buffered events. Zero uses DefaultBootTimeout; a
	// negative value disables the timer.
	BootTimeout time.Duration

	// Chunker splits large outbound events. Nil uses the transport
	// default.
	Chunker *event.Chunker

	// OrgID and Environment fill in what a deep link leaves out.
	OrgID       string
	Environment handshake.Environment

	// ClientID identifies this host to the console. Empty generates
	// one per Controller.
	ClientID string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Controller runs inspection sessions for one host process. All
// methods are safe for concurrent use. Start must be called before
// the controller is used and Close when it is no longer needed.
type Controller struct {
	handshake   *handshake.Handshake
	transport   *transport.Transport
	presenter   Presenter
	clock       clock.Clock
	logger      *slog.Logger
	bootTimeout time.Duration

	defaultOrgID       string
	defaultEnvironment handshake.Environment
	clientID           string

	outbound *queue.EventQueue
	inbound  *queue.EventQueue
	registry *plugin.Registry

	ui     chan func()
	drops  dropReporter
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mutex     sync.Mutex
	state     sessionState
	producers []StateProducer
	bootTimer *clock.Timer
	started   bool
	closed    bool
}

// Compile-time check: plugins receive the controller as their session.
var _ plugin.Session = (*Controller)(nil)

// New creates a Controller. It panics if Strategy or Handshake is nil.
func New(config Config) *Controller {
	if config.Strategy == nil {
		panic("session: Config.Strategy is required")
	}
	if config.Handshake == nil {
		panic("session: Config.Handshake is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "session")

	presenter := config.Presenter
	if presenter == nil {
		presenter = logPresenter{logger: logger}
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	capacity := config.QueueCapacity
	if capacity <= 0 {
		capacity = queue.DefaultCapacity
	}
	bootTimeout := config.BootTimeout
	if bootTimeout == 0 {
		bootTimeout = DefaultBootTimeout
	}
	clientID := config.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(context.Background())
	controller := &Controller{
		handshake:          config.Handshake,
		presenter:          presenter,
		clock:              clk,
		logger:             logger,
		bootTimeout:        bootTimeout,
		defaultOrgID:       config.OrgID,
		defaultEnvironment: config.Environment,
		clientID:           clientID,
		outbound:           queue.New(capacity),
		inbound:            queue.New(capacity),
		registry:           plugin.NewRegistry(logger),
		ui:                 make(chan func(), uiBacklog),
		ctx:                ctx,
		cancel:             cancel,
	}
	controller.drops = dropReporter{clock: clk, logger: logger}
	controller.transport = transport.New(transport.Config{
		Strategy: config.Strategy,
		Delegate: &transportDelegate{controller: controller},
		Chunker:  config.Chunker,
		Logger:   logger,
	})
	return controller
}

// Start launches the drain and UI goroutines and arms the boot timer.
// Events sent from now on are buffered until a session starts or the
// boot timer fires. Calling Start again has no effect.
func (c *Controller) Start() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.started || c.closed {
		return
	}
	c.started = true
	c.state.processingEnabled = true

	c.wg.Add(3)
	go c.runOutbound()
	go c.runInbound()
	go c.runUI()

	if c.bootTimeout > 0 {
		c.bootTimer = c.clock.AfterFunc(c.bootTimeout, c.shutDownSession)
	}
	c.logger.Info("controller started", "boot_timeout", c.bootTimeout, "queue_capacity", c.outbound.Capacity())
}

// StartSessionFromDeepLink validates rawURL and starts the session it
// names. A malformed link returns a *transport.ConnectionError and
// leaves all state untouched.
func (c *Controller) StartSessionFromDeepLink(ctx context.Context, rawURL string) error {
	info, err := handshake.ParseDeepLink(rawURL)
	if err != nil {
		c.logger.Warn("rejected session deep link", "error", err)
		return err
	}

	c.mutex.Lock()
	c.stopBootTimerLocked()
	if info.OrgID == "" {
		info.OrgID = c.defaultOrgID
	}
	if info.Environment == "" {
		info.Environment = c.defaultEnvironment
	}
	if info.ClientID == "" {
		info.ClientID = c.clientID
	}
	previous := c.state.session
	if previous.SessionID != info.SessionID || previous.Environment != info.Environment ||
		previous.OrgID != info.OrgID || info.Token != "" {
		c.state.channelURL = ""
	}
	c.state.session = info
	c.state.processingEnabled = true
	c.mutex.Unlock()

	c.logger.Info("session deep link accepted",
		"session_id", info.SessionID,
		"environment", info.Environment,
	)
	c.StartSession(ctx)
	return nil
}

// StartSession connects the current session. It does nothing while a
// connection or handshake is already in progress. With a cached
// channel URL it reconnects directly; otherwise it runs the handshake.
func (c *Controller) StartSession(ctx context.Context) {
	c.mutex.Lock()
	if c.closed || c.state.handshaking || c.transport.State().Active() {
		c.mutex.Unlock()
		c.logger.Debug("start session ignored: already connecting")
		return
	}
	channelURL := c.state.channelURL
	if channelURL != "" {
		c.state.awaitingPIN = false
		c.mutex.Unlock()
		c.logger.Info("reconnecting with cached channel URL")
		c.transport.Connect(channelURL)
		return
	}
	c.mutex.Unlock()
	c.beginNewSession(ctx)
}

// beginNewSession runs the handshake on its own goroutine and, on
// success, connects with the authorized URL.
func (c *Controller) beginNewSession(ctx context.Context) {
	c.mutex.Lock()
	session := c.state.session
	if session.SessionID == "" {
		c.mutex.Unlock()
		c.handleConnectionError(transport.NewConnectionError(transport.KindNoSessionID,
			errors.New("no session deep link received")))
		return
	}
	c.state.handshaking = true
	c.mutex.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer stop()
		defer cancel()

		channelURL, authorized, err := c.handshake.Begin(ctx, session)

		c.mutex.Lock()
		c.state.handshaking = false
		if err != nil {
			c.mutex.Unlock()
			var connectionError *transport.ConnectionError
			if !errors.As(err, &connectionError) {
				connectionError = transport.NewConnectionError(transport.KindGeneric, err)
			}
			c.handleConnectionError(connectionError)
			return
		}
		if c.closed || c.state.session.SessionID != session.SessionID {
			c.mutex.Unlock()
			c.logger.Info("handshake result discarded: session changed", "session_id", session.SessionID)
			return
		}
		c.state.session = authorized
		c.state.channelURL = channelURL
		c.state.awaitingPIN = true
		c.mutex.Unlock()

		c.transport.Connect(channelURL)
	}()
}

// TerminateSession disconnects, discards queued events and session
// identity, and tells every plugin the session is over. Events sent
// afterwards are ignored until a new session starts.
func (c *Controller) TerminateSession() {
	c.mutex.Lock()
	c.stopBootTimerLocked()
	sessionID := c.state.session.SessionID
	c.state = sessionState{bootEventsCleared: c.state.bootEventsCleared}
	c.mutex.Unlock()

	c.transport.Disconnect()
	c.outbound.Clear()
	c.inbound.Clear()
	c.registry.NotifyTerminated()
	c.postUI(c.presenter.SessionTerminated)

	c.logger.Info("session terminated",
		"session_id", sessionID,
		"outbound_dropped", c.outbound.Dropped(),
		"inbound_dropped", c.inbound.Dropped(),
	)
}

// Send queues e for the console. It never blocks. Before a session is
// established events are buffered; after the boot timeout or a
// termination they are discarded.
func (c *Controller) Send(e event.Event) {
	c.mutex.Lock()
	enabled := c.state.processingEnabled
	c.mutex.Unlock()
	// No logging here: the log forwarder turns stderr lines into Sends.
	if !enabled {
		return
	}
	c.outbound.Enqueue(e)
}

// SessionID returns the current session id, or "".
func (c *Controller) SessionID() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state.session.SessionID
}

// Environment returns the console environment of the current session.
func (c *Controller) Environment() handshake.Environment {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.state.session.Environment == "" {
		return c.defaultEnvironment
	}
	return c.state.session.Environment
}

// State returns the transport state.
func (c *Controller) State() transport.State {
	return c.transport.State()
}

// Stats returns queue occupancy and overflow counters.
func (c *Controller) Stats() Stats {
	return Stats{
		OutboundLen:     c.outbound.Len(),
		InboundLen:      c.inbound.Len(),
		OutboundDropped: c.outbound.Dropped(),
		InboundDropped:  c.inbound.Dropped(),
	}
}

// RegisterPlugin adds p to the plugin registry.
func (c *Controller) RegisterPlugin(p plugin.Plugin) {
	c.registry.Register(p, c)
}

// RegisterStateProducer adds a producer consulted for resync events.
func (c *Controller) RegisterStateProducer(producer StateProducer) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.producers = append(c.producers, producer)
}

// shutDownSession runs when the boot timer fires. Without a session
// deep link by then, buffered events are discarded and Send stops
// queueing.
func (c *Controller) shutDownSession() {
	c.mutex.Lock()
	if c.state.session.SessionID != "" {
		c.mutex.Unlock()
		return
	}
	c.state.bootEventsCleared = true
	c.state.processingEnabled = false
	c.bootTimer = nil
	c.mutex.Unlock()

	discarded := c.outbound.Len() + c.inbound.Len()
	c.outbound.Clear()
	c.inbound.Clear()
	c.logger.Info("no session before boot timeout, discarding buffered events",
		"boot_timeout", c.bootTimeout,
		"discarded", discarded,
	)
}

// handleConnectionError shows err and terminates the session unless
// err is retryable. A rejected PIN also forgets the channel URL so the
// retry prompts again.
func (c *Controller) handleConnectionError(err *transport.ConnectionError) {
	c.logger.Warn("connection error",
		"kind", err.Name,
		"retryable", err.Retryable,
		"error", err,
	)
	if err.Kind == transport.KindNoPINCode {
		c.mutex.Lock()
		c.state.channelURL = ""
		c.state.session.Token = ""
		c.mutex.Unlock()
	}
	c.postUI(func() { c.presenter.ShowError(err) })
	if !err.Retryable {
		c.TerminateSession()
	}
}

// Close disconnects and stops the controller's goroutines. The
// controller cannot be restarted.
func (c *Controller) Close() {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.closed = true
	c.stopBootTimerLocked()
	c.mutex.Unlock()

	c.transport.Disconnect()
	c.cancel()
	c.wg.Wait()
	c.logger.Info("controller closed",
		"outbound_dropped", c.outbound.Dropped(),
		"inbound_dropped", c.inbound.Dropped(),
	)
}

func (c *Controller) stopBootTimerLocked() {
	if c.bootTimer != nil {
		c.bootTimer.Stop()
		c.bootTimer = nil
	}
}

// sendClientInfo writes the client-info event directly, ahead of the
// gated outbound queue, so the console can identify the client before
// it enables forwarding.
func (c *Controller) sendClientInfo() {
	hostname, _ := os.Hostname()
	info := event.New(event.ControlVendor, event.ClientType, map[string]any{
		"version": version.Short(),
		"deviceInfo": map[string]any{
			"platform": version.Platform(),
			"hostname": hostname,
		},
	})
	if err := c.transport.Send(info); err != nil {
		c.logger.Warn("sending client info failed", "error", err)
	}
}

// resync queues one event per registered StateProducer.
func (c *Controller) resync() {
	c.mutex.Lock()
	producers := append([]StateProducer(nil), c.producers...)
	c.mutex.Unlock()

	for _, producer := range producers {
		c.outbound.Enqueue(producer.StateEvent())
	}
	c.logger.Info("queued resync events", "count", len(producers))
}
