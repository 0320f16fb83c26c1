// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/transport"
)

// maxBlobSize bounds one uploaded asset.
const maxBlobSize = 32 << 20

type consoleConfig struct {
	// PIN is the token every channel URL must carry.
	PIN string

	// OrgID, when set, is the only organization accepted.
	OrgID string

	// MaxClients bounds concurrent clients per session. Zero means
	// no limit.
	MaxClients int

	// Output receives one JSON line per event from a client.
	Output io.Writer

	Logger *slog.Logger
}

// console tracks connected clients and uploaded blobs.
type console struct {
	config consoleConfig
	logger *slog.Logger

	outputMutex sync.Mutex

	mutex   sync.Mutex
	clients map[string]*client
	blobs   map[string]storedBlob

	listener *transport.DataChannelListener
}

type client struct {
	id        string
	sessionID string
	conn      transport.Conn

	writeMutex sync.Mutex
}

func (c *client) send(e event.Event) error {
	data, err := event.Marshal(e)
	if err != nil {
		return err
	}
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	return c.conn.WriteMessage(data)
}

type storedBlob struct {
	data        []byte
	contentType string
}

func newConsole(config consoleConfig) *console {
	if config.Output == nil {
		config.Output = io.Discard
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &console{
		config:  config,
		logger:  config.Logger.With("component", "console-mock"),
		clients: make(map[string]*client),
		blobs:   make(map[string]storedBlob),
	}
}

// handler serves the channel, signaling and blob endpoints.
func (c *console) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /client/v1", c.handleWebSocket)
	mux.HandleFunc("POST /api/FileUpload", c.handleUpload)
	mux.HandleFunc("GET /blobs/{id}", c.handleBlob)
	if c.listener != nil {
		mux.Handle("POST /signal", transport.SignalingHandler(c.listener, c.authorize))
	}
	return mux
}

// enableDataChannel accepts channels answered by listener until ctx
// ends. Call before handler.
func (c *console) enableDataChannel(ctx context.Context, listener *transport.DataChannelListener) {
	c.listener = listener
	go func() {
		for {
			accepted, err := listener.Accept(ctx)
			if err != nil {
				return
			}
			query, _ := channelQuery(accepted.ChannelURL)
			go c.serve(query, accepted.Conn)
		}
	}()
}

func channelQuery(channelURL string) (url.Values, error) {
	parsed, err := url.Parse(channelURL)
	if err != nil {
		return nil, err
	}
	return parsed.Query(), nil
}

// authorize applies the console's admission rules to a channel URL.
// A wrong PIN is refused the way the real console does, by failing the
// connection without a console close code.
func (c *console) authorize(channelURL string) *transport.CloseError {
	query, err := channelQuery(channelURL)
	if err != nil || query.Get("sessionId") == "" || query.Get("clientId") == "" {
		return &transport.CloseError{Code: transport.CloseClientError, Reason: "malformed channel URL"}
	}
	if query.Get("token") != c.config.PIN {
		return &transport.CloseError{Code: transport.CloseAbnormal, Reason: "invalid token"}
	}
	if c.config.OrgID != "" && query.Get("orgId") != c.config.OrgID {
		return &transport.CloseError{Code: transport.CloseOrgMismatch, Reason: "organization mismatch"}
	}
	if c.config.MaxClients > 0 && c.sessionClients(query.Get("sessionId")) >= c.config.MaxClients {
		return &transport.CloseError{Code: transport.CloseConnectionLimit, Reason: "connection limit reached"}
	}
	return nil
}

func (c *console) handleWebSocket(writer http.ResponseWriter, request *http.Request) {
	refusal := c.authorize(request.URL.String())
	if refusal != nil && refusal.Code == transport.CloseAbnormal {
		c.logger.Info("refusing client", "reason", refusal.Reason, "remote", request.RemoteAddr)
		http.Error(writer, refusal.Reason, http.StatusForbidden)
		return
	}
	conn, err := transport.AcceptWebSocket(writer, request)
	if err != nil {
		c.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	if refusal != nil {
		c.logger.Info("closing client", "code", refusal.Code, "reason", refusal.Reason)
		conn.Close(refusal.Code, refusal.Reason)
		return
	}
	c.serve(request.URL.Query(), conn)
}

// serve registers a client, enables forwarding and prints its events
// until the channel closes.
func (c *console) serve(query url.Values, conn transport.Conn) {
	connected := &client{
		id:        query.Get("clientId"),
		sessionID: query.Get("sessionId"),
		conn:      conn,
	}
	c.mutex.Lock()
	if previous, ok := c.clients[connected.id]; ok {
		previous.conn.Close(transport.CloseNormal, "replaced")
	}
	c.clients[connected.id] = connected
	c.mutex.Unlock()
	defer func() {
		c.mutex.Lock()
		if c.clients[connected.id] == connected {
			delete(c.clients, connected.id)
		}
		c.mutex.Unlock()
	}()

	logger := c.logger.With("client_id", connected.id, "session_id", connected.sessionID)
	logger.Info("client connected")
	if err := connected.send(event.NewControl(event.CommandStartForwarding, nil)); err != nil {
		logger.Warn("enabling forwarding failed", "error", err)
		conn.Close(transport.CloseAbnormal, "")
		return
	}

	reassembler := event.NewReassembler(event.DefaultMaxPending)
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("client disconnected", "reason", err)
			return
		}
		incoming, err := event.Unmarshal(data)
		if err != nil {
			logger.Warn("malformed message", "error", err)
			continue
		}
		complete, done, err := reassembler.Add(incoming)
		if err != nil {
			logger.Warn("bad chunk", "error", err)
			continue
		}
		if done {
			c.print(connected.id, complete)
		}
	}
}

// received is the stdout line format.
type received struct {
	ClientID string      `json:"client_id"`
	Event    event.Event `json:"event"`
}

func (c *console) print(clientID string, e event.Event) {
	data, err := json.Marshal(received{ClientID: clientID, Event: e})
	if err != nil {
		c.logger.Warn("encoding event", "error", err)
		return
	}
	c.outputMutex.Lock()
	defer c.outputMutex.Unlock()
	fmt.Fprintf(c.config.Output, "%s\n", data)
}

// broadcast sends e to every connected client and returns how many
// accepted it.
func (c *console) broadcast(e event.Event) int {
	delivered := 0
	for _, connected := range c.snapshot() {
		if err := connected.send(e); err != nil {
			c.logger.Warn("send failed", "client_id", connected.id, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// closeAll closes every client channel with code.
func (c *console) closeAll(code int, reason string) int {
	clients := c.snapshot()
	for _, connected := range clients {
		connected.conn.Close(code, reason)
	}
	return len(clients)
}

// clientIDs returns the connected client ids, sorted.
func (c *console) clientIDs() []string {
	clients := c.snapshot()
	ids := make([]string, 0, len(clients))
	for _, connected := range clients {
		ids = append(ids, connected.id+" (session "+connected.sessionID+")")
	}
	sort.Strings(ids)
	return ids
}

func (c *console) snapshot() []*client {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	clients := make([]*client, 0, len(c.clients))
	for _, connected := range c.clients {
		clients = append(clients, connected)
	}
	return clients
}

func (c *console) sessionClients(sessionID string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	count := 0
	for _, connected := range c.clients {
		if connected.sessionID == sessionID {
			count++
		}
	}
	return count
}

func (c *console) handleUpload(writer http.ResponseWriter, request *http.Request) {
	if request.URL.Query().Get("validationSessionId") == "" {
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": "missing validationSessionId"})
		return
	}
	data, err := io.ReadAll(io.LimitReader(request.Body, maxBlobSize+1))
	if err != nil {
		writeJSON(writer, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if len(data) > maxBlobSize {
		writeJSON(writer, http.StatusRequestEntityTooLarge, map[string]string{"error": "blob too large"})
		return
	}

	id := uuid.NewString()
	contentType := request.Header.Get("File-Content-Type")
	c.mutex.Lock()
	c.blobs[id] = storedBlob{data: data, contentType: contentType}
	c.mutex.Unlock()

	c.logger.Info("blob stored", "id", id, "bytes", len(data), "content_type", contentType)
	writeJSON(writer, http.StatusOK, map[string]string{"id": id})
}

func (c *console) handleBlob(writer http.ResponseWriter, request *http.Request) {
	c.mutex.Lock()
	stored, ok := c.blobs[request.PathValue("id")]
	c.mutex.Unlock()
	if !ok {
		http.NotFound(writer, request)
		return
	}
	if stored.contentType != "" {
		writer.Header().Set("Content-Type", stored.contentType)
	}
	writer.Write(stored.data)
}

func writeJSON(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	json.NewEncoder(writer).Encode(body)
}
