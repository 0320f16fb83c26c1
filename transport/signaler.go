// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bureau-foundation/inspect/lib/netutil"
)

// Signaler exchanges one SDP offer for an answer on behalf of a
// channel URL. The console validates the URL's session and token
// before answering; a refusal comes back as a *CloseError carrying the
// console's close code.
type Signaler interface {
	Exchange(ctx context.Context, channelURL, offerSDP string) (answerSDP string, err error)
}

// Authorizer decides whether the console accepts a channel URL. A nil
// return accepts it.
type Authorizer func(channelURL string) *CloseError

// SignalRequest is the body POSTed to a signaling endpoint.
type SignalRequest struct {
	ChannelURL string `json:"channelUrl"`
	SDP        string `json:"sdp"`
}

// SignalResponse is the signaling endpoint's reply. On refusal Code
// holds the close code and Error the reason.
type SignalResponse struct {
	SDP   string `json:"sdp,omitempty"`
	Code  int    `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Compile-time interface checks.
var (
	_ Signaler = (*HTTPSignaler)(nil)
	_ Signaler = (*MemorySignaler)(nil)
)

// HTTPSignaler posts offers to an HTTP signaling endpoint.
type HTTPSignaler struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSignaler returns a signaler for endpoint. A nil client uses
// http.DefaultClient.
func NewHTTPSignaler(endpoint string, client *http.Client) *HTTPSignaler {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSignaler{endpoint: endpoint, client: client}
}

func (s *HTTPSignaler) Exchange(ctx context.Context, channelURL, offerSDP string) (string, error) {
	body, err := json.Marshal(SignalRequest{ChannelURL: channelURL, SDP: offerSDP})
	if err != nil {
		return "", err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building signaling request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("signaling request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusForbidden {
		return "", fmt.Errorf("signaling endpoint returned HTTP %d: %s", response.StatusCode, netutil.ErrorBody(response.Body))
	}
	var reply SignalResponse
	if err := netutil.DecodeResponse(response.Body, &reply); err != nil {
		return "", err
	}
	return reply.answer()
}

func (r SignalResponse) answer() (string, error) {
	if r.Code != 0 {
		return "", &CloseError{Code: r.Code, Reason: r.Error}
	}
	if r.Error != "" {
		return "", errors.New(r.Error)
	}
	if r.SDP == "" {
		return "", errors.New("signaling response carried no SDP answer")
	}
	return r.SDP, nil
}

// MemorySignaler hands offers straight to an in-process
// DataChannelListener.
type MemorySignaler struct {
	listener  *DataChannelListener
	authorize Authorizer
}

// NewMemorySignaler returns a signaler answering through listener.
// authorize may be nil.
func NewMemorySignaler(listener *DataChannelListener, authorize Authorizer) *MemorySignaler {
	return &MemorySignaler{listener: listener, authorize: authorize}
}

func (s *MemorySignaler) Exchange(ctx context.Context, channelURL, offerSDP string) (string, error) {
	return answerOffer(ctx, s.listener, s.authorize, channelURL, offerSDP).answer()
}

// SignalingHandler serves the console side of HTTPSignaler.
func SignalingHandler(listener *DataChannelListener, authorize Authorizer) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			http.Error(writer, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var signal SignalRequest
		if err := netutil.DecodeResponse(request.Body, &signal); err != nil {
			http.Error(writer, err.Error(), http.StatusBadRequest)
			return
		}

		reply := answerOffer(request.Context(), listener, authorize, signal.ChannelURL, signal.SDP)
		writer.Header().Set("Content-Type", "application/json")
		switch {
		case reply.Code != 0:
			writer.WriteHeader(http.StatusForbidden)
		case reply.Error != "":
			writer.WriteHeader(http.StatusInternalServerError)
		}
		json.NewEncoder(writer).Encode(reply)
	})
}

func answerOffer(ctx context.Context, listener *DataChannelListener, authorize Authorizer, channelURL, offerSDP string) SignalResponse {
	if authorize != nil {
		if refusal := authorize(channelURL); refusal != nil {
			return SignalResponse{Code: refusal.Code, Error: refusal.Reason}
		}
	}
	answer, err := listener.Answer(ctx, channelURL, offerSDP)
	if err != nil {
		return SignalResponse{Error: err.Error()}
	}
	return SignalResponse{SDP: answer}
}
