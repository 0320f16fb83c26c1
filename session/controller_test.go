// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/handshake"
	"github.com/bureau-foundation/inspect/lib/clock"
	"github.com/bureau-foundation/inspect/lib/testutil"
	"github.com/bureau-foundation/inspect/plugin"
	"github.com/bureau-foundation/inspect/transport"
)

const (
	testTimeout   = 10 * time.Second
	quietWindow   = 200 * time.Millisecond
	testSessionID = "5e1c9a7e-3b2d-4f0a-9c1e-7d4b2a6f8e01"
	testOrgID     = "972C898555E9F7BC7F000101@AdobeOrg"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// deepLink builds a session link; an empty token makes the handshake
// prompt for the PIN.
func deepLink(token string) string {
	link := "inspect://session?sessionId=" + testSessionID + "&orgId=972C898555E9F7BC7F000101%40AdobeOrg"
	if token != "" {
		link += "&token=" + token
	}
	return link
}

// consoleFixture is a websocket console on httptest. Every channel URL
// the controller builds is redirected to it.
type consoleFixture struct {
	endpoint string
	accepted chan transport.Conn
	queries  chan string
	refuse   atomic.Bool
}

func startConsole(t *testing.T) *consoleFixture {
	t.Helper()
	fixture := &consoleFixture{
		accepted: make(chan transport.Conn, 4),
		queries:  make(chan string, 8),
	}
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		select {
		case fixture.queries <- request.URL.RawQuery:
		default:
		}
		if fixture.refuse.Load() {
			http.Error(writer, "invalid token", http.StatusForbidden)
			return
		}
		conn, err := transport.AcceptWebSocket(writer, request)
		if err != nil {
			return
		}
		fixture.accepted <- conn
	}))
	t.Cleanup(server.Close)
	fixture.endpoint = "ws" + strings.TrimPrefix(server.URL, "http")
	return fixture
}

// pump decodes everything the console receives on conn.
func pump(t *testing.T, conn transport.Conn) <-chan event.Event {
	t.Helper()
	events := make(chan event.Event, 64)
	go func() {
		defer close(events)
		for {
			data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received, err := event.Unmarshal(data)
			if err != nil {
				continue
			}
			events <- received
		}
	}()
	t.Cleanup(func() { conn.Close(transport.CloseNormal, "") })
	return events
}

func sendToClient(t *testing.T, conn transport.Conn, e event.Event) {
	t.Helper()
	data, err := event.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := conn.WriteMessage(data); err != nil {
		t.Fatalf("console WriteMessage: %v", err)
	}
}

// acceptSession waits for the controller to connect, checks the
// client-info event, and returns the console side.
func acceptSession(t *testing.T, fixture *consoleFixture) (transport.Conn, <-chan event.Event) {
	t.Helper()
	conn := testutil.RequireReceive(t, fixture.accepted, testTimeout, "console accept")
	events := pump(t, conn)
	first := testutil.RequireReceive(t, events, testTimeout, "client info event")
	if first.Vendor != event.ControlVendor || first.Type != event.ClientType {
		t.Fatalf("first event = %s/%s, want client info", first.Vendor, first.Type)
	}
	return conn, events
}

type recordingPresenter struct {
	states     chan transport.State
	errors     chan *transport.ConnectionError
	terminated chan struct{}
}

func newRecordingPresenter() *recordingPresenter {
	return &recordingPresenter{
		states:     make(chan transport.State, 64),
		errors:     make(chan *transport.ConnectionError, 16),
		terminated: make(chan struct{}, 16),
	}
}

func (p *recordingPresenter) StatusChanged(state transport.State) { p.states <- state }

func (p *recordingPresenter) ShowError(err *transport.ConnectionError) { p.errors <- err }

func (p *recordingPresenter) SessionTerminated() { p.terminated <- struct{}{} }

func (p *recordingPresenter) requireError(t *testing.T, kind transport.ErrorKind) *transport.ConnectionError {
	t.Helper()
	err := testutil.RequireReceive(t, p.errors, testTimeout, "presenter error")
	if err.Kind != kind {
		t.Fatalf("presenter error kind = %s (%v), want kind %d", err.Name, err, kind)
	}
	return err
}

// countingPrompter answers PIN prompts from a list and counts them.
type countingPrompter struct {
	calls atomic.Int32
	pins  []string
}

func (p *countingPrompter) PromptPIN(context.Context) (string, error) {
	call := int(p.calls.Add(1))
	if call > len(p.pins) {
		return p.pins[len(p.pins)-1], nil
	}
	return p.pins[call-1], nil
}

type testSetup struct {
	fixture   *consoleFixture
	prompter  handshake.PINPrompter
	clock     *clock.FakeClock
	presenter *recordingPresenter
}

func newTestController(t *testing.T, setup *testSetup) *Controller {
	t.Helper()
	if setup.fixture == nil {
		setup.fixture = startConsole(t)
	}
	if setup.clock == nil {
		setup.clock = clock.Fake(time.Unix(1_700_000_000, 0))
	}
	if setup.presenter == nil {
		setup.presenter = newRecordingPresenter()
	}
	strategy, err := transport.Redirect(transport.NewWebSocketStrategy(discardLogger()), setup.fixture.endpoint)
	if err != nil {
		t.Fatalf("Redirect: %v", err)
	}
	controller := New(Config{
		Strategy:  strategy,
		Handshake: handshake.New(handshake.Config{Prompter: setup.prompter, Logger: discardLogger()}),
		Presenter: setup.presenter,
		Clock:     setup.clock,
		Logger:    discardLogger(),
	})
	controller.Start()
	t.Cleanup(controller.Close)
	return controller
}

// testPlugin reports its callbacks on channels.
type testPlugin struct {
	plugin.Base
	vendor       string
	command      string
	registered   chan plugin.Session
	events       chan event.Event
	connected    chan struct{}
	disconnected chan int
	terminated   chan struct{}
}

func newTestPlugin(vendor, command string) *testPlugin {
	return &testPlugin{
		vendor:       vendor,
		command:      command,
		registered:   make(chan plugin.Session, 1),
		events:       make(chan event.Event, 16),
		connected:    make(chan struct{}, 16),
		disconnected: make(chan int, 16),
		terminated:   make(chan struct{}, 16),
	}
}

func (p *testPlugin) Vendor() string                      { return p.vendor }
func (p *testPlugin) CommandType() string                 { return p.command }
func (p *testPlugin) OnRegistered(session plugin.Session) { p.registered <- session }
func (p *testPlugin) OnEventReceived(e event.Event)       { p.events <- e }
func (p *testPlugin) OnSessionConnected()                 { p.connected <- struct{}{} }
func (p *testPlugin) OnSessionDisconnected(code int)      { p.disconnected <- code }
func (p *testPlugin) OnSessionTerminated()                { p.terminated <- struct{}{} }

func TestForwardingGatedUntilStartForwarding(t *testing.T) {
	setup := &testSetup{}
	controller := newTestController(t, setup)

	buffered := event.New("com.example.analytics", "track", map[string]any{"screen": "home"})
	controller.Send(buffered)
	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("1234")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	conn, events := acceptSession(t, setup.fixture)

	testutil.RequireNoReceive(t, events, quietWindow, "event forwarded before startForwarding")

	sendToClient(t, conn, event.NewControl(event.CommandStartForwarding, nil))
	if got := testutil.RequireReceive(t, events, testTimeout, "buffered event"); got.ID != buffered.ID {
		t.Fatalf("console received %s, want buffered event %s", got.ID, buffered.ID)
	}

	live := event.New("com.example.analytics", "track", map[string]any{"screen": "cart"})
	controller.Send(live)
	if got := testutil.RequireReceive(t, events, testTimeout, "live event"); got.ID != live.ID {
		t.Fatalf("console received %s, want live event %s", got.ID, live.ID)
	}
}

func TestOutboundOrderIsFIFO(t *testing.T) {
	setup := &testSetup{}
	controller := newTestController(t, setup)
	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("1234")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	conn, events := acceptSession(t, setup.fixture)
	sendToClient(t, conn, event.NewControl(event.CommandStartForwarding, nil))

	var sent []string
	for index := range 20 {
		e := event.New("com.example.analytics", "track", map[string]any{"index": index})
		sent = append(sent, e.ID)
		controller.Send(e)
	}
	for index, want := range sent {
		got := testutil.RequireReceive(t, events, testTimeout, "event %d", index)
		if got.ID != want {
			t.Fatalf("event %d = %s, want %s", index, got.ID, want)
		}
	}
}

func TestReconnectWithoutHandshake(t *testing.T) {
	prompter := &countingPrompter{pins: []string{"2468"}}
	setup := &testSetup{prompter: prompter}
	controller := newTestController(t, setup)

	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	firstQuery := testutil.RequireReceive(t, setup.fixture.queries, testTimeout, "first dial")
	conn, _ := acceptSession(t, setup.fixture)
	if !strings.Contains(firstQuery, "token=2468") {
		t.Fatalf("channel query %q does not carry the entered PIN", firstQuery)
	}

	conn.Close(1001, "going away")
	err := setup.presenter.requireError(t, transport.KindGeneric)
	if !err.Retryable {
		t.Fatal("generic close should be retryable")
	}
	testutil.RequireNoReceive(t, setup.presenter.terminated, quietWindow, "retryable error terminated the session")

	controller.StartSession(context.Background())
	secondQuery := testutil.RequireReceive(t, setup.fixture.queries, testTimeout, "reconnect dial")
	acceptSession(t, setup.fixture)

	if secondQuery != firstQuery {
		t.Errorf("reconnect query = %q, want cached %q", secondQuery, firstQuery)
	}
	if calls := prompter.calls.Load(); calls != 1 {
		t.Errorf("PIN prompted %d times, want 1", calls)
	}
}

func TestStartSessionIgnoredWhileOpen(t *testing.T) {
	setup := &testSetup{}
	controller := newTestController(t, setup)
	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("1234")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	testutil.RequireReceive(t, setup.fixture.queries, testTimeout, "dial")
	acceptSession(t, setup.fixture)

	controller.StartSession(context.Background())
	testutil.RequireNoReceive(t, setup.fixture.queries, quietWindow, "second dial while open")
	if state := controller.State(); state != transport.StateOpen {
		t.Errorf("State() = %s, want open", state)
	}
}

func TestBootTimeoutClearsAndResyncs(t *testing.T) {
	setup := &testSetup{}
	controller := newTestController(t, setup)

	controller.Send(event.New("com.example.analytics", "track", nil))
	if got := controller.Stats().OutboundLen; got != 1 {
		t.Fatalf("OutboundLen before timeout = %d, want 1", got)
	}

	setup.clock.Advance(DefaultBootTimeout)
	if got := controller.Stats().OutboundLen; got != 0 {
		t.Fatalf("OutboundLen after timeout = %d, want 0", got)
	}
	controller.Send(event.New("com.example.analytics", "track", nil))
	if got := controller.Stats().OutboundLen; got != 0 {
		t.Fatalf("event queued after boot timeout: OutboundLen = %d", got)
	}

	lifecycle := event.New("com.example.lifecycle", "state", map[string]any{"launched": true})
	identity := event.New("com.example.identity", "state", map[string]any{"ecid": "123"})
	controller.RegisterStateProducer(StateProducerFunc(func() event.Event { return lifecycle }))
	controller.RegisterStateProducer(StateProducerFunc(func() event.Event { return identity }))

	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("1234")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	conn, events := acceptSession(t, setup.fixture)
	sendToClient(t, conn, event.NewControl(event.CommandStartForwarding, nil))

	for _, want := range []event.Event{lifecycle, identity} {
		got := testutil.RequireReceive(t, events, testTimeout, "resync event")
		if got.ID != want.ID {
			t.Fatalf("resync event = %s (%s), want %s (%s)", got.ID, got.Vendor, want.ID, want.Vendor)
		}
	}
	testutil.RequireNoReceive(t, events, quietWindow, "discarded boot events were forwarded")
}

func TestDeepLinkStopsBootTimer(t *testing.T) {
	setup := &testSetup{}
	controller := newTestController(t, setup)
	if pending := setup.clock.PendingCount(); pending != 1 {
		t.Fatalf("pending timers after Start = %d, want 1", pending)
	}

	controller.Send(event.New("com.example.analytics", "track", nil))
	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("1234")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	if pending := setup.clock.PendingCount(); pending != 0 {
		t.Fatalf("pending timers after deep link = %d, want 0", pending)
	}
	setup.clock.Advance(time.Minute)
	if got := controller.Stats().OutboundLen; got != 1 {
		t.Errorf("OutboundLen = %d, want buffered event kept", got)
	}
}

func TestInvalidDeepLinkHasNoSideEffects(t *testing.T) {
	setup := &testSetup{}
	controller := newTestController(t, setup)

	err := controller.StartSessionFromDeepLink(context.Background(), "inspect://session?sessionId=not-a-uuid")
	var connectionError *transport.ConnectionError
	if !errors.As(err, &connectionError) || connectionError.Kind != transport.KindNoSessionID {
		t.Fatalf("error = %v, want NoSessionID", err)
	}
	testutil.RequireNoReceive(t, setup.fixture.queries, quietWindow, "dial after invalid deep link")
	if id := controller.SessionID(); id != "" {
		t.Errorf("SessionID() = %q, want empty", id)
	}
	if pending := setup.clock.PendingCount(); pending != 1 {
		t.Errorf("boot timer pending = %d, want still armed", pending)
	}
}

func TestNonRetryableCloseTerminates(t *testing.T) {
	setup := &testSetup{}
	controller := newTestController(t, setup)
	observer := newTestPlugin("com.example.remote", plugin.Wildcard)
	controller.RegisterPlugin(observer)

	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("1234")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	conn, _ := acceptSession(t, setup.fixture)
	testutil.RequireReceive(t, observer.connected, testTimeout, "plugin connected")

	controller.Send(event.New("com.example.analytics", "track", nil))
	conn.Close(transport.CloseOrgMismatch, "org mismatch")

	if code := testutil.RequireReceive(t, observer.disconnected, testTimeout, "plugin disconnected"); code != transport.CloseOrgMismatch {
		t.Errorf("plugin saw close code %d, want %d", code, transport.CloseOrgMismatch)
	}
	setup.presenter.requireError(t, transport.KindOrgIDMismatch)
	testutil.RequireReceive(t, setup.presenter.terminated, testTimeout, "session terminated")
	testutil.RequireReceive(t, observer.terminated, testTimeout, "plugin terminated")

	if id := controller.SessionID(); id != "" {
		t.Errorf("SessionID() = %q after termination, want empty", id)
	}
	if stats := controller.Stats(); stats.OutboundLen != 0 {
		t.Errorf("OutboundLen = %d after termination, want 0", stats.OutboundLen)
	}
}

func TestRejectedPINPromptsAgain(t *testing.T) {
	prompter := &countingPrompter{pins: []string{"1111", "2222"}}
	setup := &testSetup{prompter: prompter}
	setup.fixture = startConsole(t)
	setup.fixture.refuse.Store(true)
	controller := newTestController(t, setup)

	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	testutil.RequireReceive(t, setup.fixture.queries, testTimeout, "refused dial")
	setup.presenter.requireError(t, transport.KindNoPINCode)
	testutil.RequireNoReceive(t, setup.presenter.terminated, quietWindow, "PIN error terminated the session")

	setup.fixture.refuse.Store(false)
	controller.StartSession(context.Background())
	query := testutil.RequireReceive(t, setup.fixture.queries, testTimeout, "second dial")
	acceptSession(t, setup.fixture)

	if calls := prompter.calls.Load(); calls != 2 {
		t.Errorf("PIN prompted %d times, want 2", calls)
	}
	if !strings.Contains(query, "token=2222") {
		t.Errorf("second dial query %q, want the re-entered PIN", query)
	}
}

func TestCancelledPINTerminates(t *testing.T) {
	setup := &testSetup{prompter: handshake.PromptFunc(func(context.Context) (string, error) {
		return "", handshake.ErrCancelled
	})}
	controller := newTestController(t, setup)

	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	setup.presenter.requireError(t, transport.KindUserCancelled)
	testutil.RequireReceive(t, setup.presenter.terminated, testTimeout, "session terminated")
	testutil.RequireNoReceive(t, setup.fixture.queries, quietWindow, "dial after cancelled PIN")
}

func TestStartSessionWithoutDeepLink(t *testing.T) {
	setup := &testSetup{}
	controller := newTestController(t, setup)

	controller.StartSession(context.Background())
	setup.presenter.requireError(t, transport.KindNoSessionID)
	testutil.RequireReceive(t, setup.presenter.terminated, testTimeout, "session terminated")
}

func TestPluginReceivesCommands(t *testing.T) {
	setup := &testSetup{}
	controller := newTestController(t, setup)
	ping := newTestPlugin("com.example.remote", "ping")
	controller.RegisterPlugin(ping)

	session := testutil.RequireReceive(t, ping.registered, testTimeout, "OnRegistered")
	if session != plugin.Session(controller) {
		t.Fatalf("plugin registered with %v, want the controller", session)
	}

	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("1234")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	conn, _ := acceptSession(t, setup.fixture)
	testutil.RequireReceive(t, ping.connected, testTimeout, "plugin connected")

	command := event.New("com.example.remote", event.ControlType, map[string]any{event.CommandKey: "ping"})
	sendToClient(t, conn, event.New("com.example.remote", event.ControlType, map[string]any{event.CommandKey: "pong"}))
	sendToClient(t, conn, command)

	if got := testutil.RequireReceive(t, ping.events, testTimeout, "ping command"); got.ID != command.ID {
		t.Fatalf("plugin received %s (%s), want %s", got.ID, got.CommandType(), command.ID)
	}
	if id := session.SessionID(); id != testSessionID {
		t.Errorf("plugin session id = %q, want %q", id, testSessionID)
	}
}

func TestTerminateSessionDiscardsEvents(t *testing.T) {
	setup := &testSetup{}
	controller := newTestController(t, setup)
	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("1234")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	acceptSession(t, setup.fixture)

	controller.Send(event.New("com.example.analytics", "track", nil))
	controller.TerminateSession()
	testutil.RequireReceive(t, setup.presenter.terminated, testTimeout, "session terminated")

	controller.Send(event.New("com.example.analytics", "track", nil))
	if stats := controller.Stats(); stats.OutboundLen != 0 || stats.InboundLen != 0 {
		t.Errorf("stats after termination = %+v, want empty queues", stats)
	}
	if id := controller.SessionID(); id != "" {
		t.Errorf("SessionID() = %q, want empty", id)
	}
}

func TestQueueOverflowDropsOldest(t *testing.T) {
	setup := &testSetup{fixture: startConsole(t)}
	strategy, err := transport.Redirect(transport.NewWebSocketStrategy(discardLogger()), setup.fixture.endpoint)
	if err != nil {
		t.Fatalf("Redirect: %v", err)
	}
	controller := New(Config{
		Strategy:      strategy,
		Handshake:     handshake.New(handshake.Config{Logger: discardLogger()}),
		Presenter:     newRecordingPresenter(),
		Clock:         clock.Fake(time.Unix(0, 0)),
		QueueCapacity: 2,
		Logger:        discardLogger(),
	})
	controller.Start()
	t.Cleanup(controller.Close)

	a := event.New("com.example", "a", nil)
	b := event.New("com.example", "b", nil)
	c := event.New("com.example", "c", nil)
	controller.Send(a)
	controller.Send(b)
	controller.Send(c)

	stats := controller.Stats()
	if stats.OutboundLen != 2 || stats.OutboundDropped != 1 {
		t.Fatalf("stats = %+v, want 2 queued and 1 dropped", stats)
	}

	if err := controller.StartSessionFromDeepLink(context.Background(), deepLink("1234")); err != nil {
		t.Fatalf("StartSessionFromDeepLink: %v", err)
	}
	conn, events := acceptSession(t, setup.fixture)
	sendToClient(t, conn, event.NewControl(event.CommandStartForwarding, nil))
	for _, want := range []event.Event{b, c} {
		if got := testutil.RequireReceive(t, events, testTimeout, "queued event"); got.ID != want.ID {
			t.Fatalf("console received %s, want %s", got.Type, want.Type)
		}
	}
}
