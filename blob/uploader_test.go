// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/inspect/handshake"
	"github.com/bureau-foundation/inspect/lib/testutil"
)

const testSessionID = "5e1c9a7e-3b2d-4f0a-9c1e-7d4b2a6f8e01"

var testTarget = Target{Environment: handshake.Production, SessionID: testSessionID}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type receivedUpload struct {
	query   string
	headers http.Header
	body    []byte
}

// blobService returns a fake blob endpoint that records each request
// and replies with status and body.
func blobService(t *testing.T, status int, reply string) (*httptest.Server, <-chan receivedUpload) {
	t.Helper()
	received := make(chan receivedUpload, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != uploadPath {
			http.Error(w, "unexpected request", http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		received <- receivedUpload{query: r.URL.RawQuery, headers: r.Header.Clone(), body: body}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(server.Close)
	return server, received
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		environment handshake.Environment
		want        string
	}{
		{handshake.Production, "https://blob.griffon.adobe.com/api/FileUpload?validationSessionId=abc"},
		{handshake.Staging, "https://blob-stage.griffon.adobe.com/api/FileUpload?validationSessionId=abc"},
		{handshake.Development, "https://blob-dev.griffon.adobe.com/api/FileUpload?validationSessionId=abc"},
	}
	uploader := NewUploader(Config{Logger: discardLogger()})
	for _, test := range tests {
		if got := uploader.Endpoint(Target{Environment: test.environment, SessionID: "abc"}); got != test.want {
			t.Errorf("Endpoint(%s) = %q, want %q", test.environment, got, test.want)
		}
	}
}

func TestEndpointBaseURLOverridesEnvironment(t *testing.T) {
	uploader := NewUploader(Config{BaseURL: "http://127.0.0.1:8080", Logger: discardLogger()})
	got := uploader.Endpoint(Target{Environment: handshake.Development, SessionID: "abc"})
	if want := "http://127.0.0.1:8080/api/FileUpload?validationSessionId=abc"; got != want {
		t.Errorf("Endpoint() = %q, want %q", got, want)
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(request *http.Request) (*http.Response, error) { return f(request) }

func TestUploadFollowsSessionEnvironment(t *testing.T) {
	hosts := make(chan string, 2)
	client := &http.Client{Transport: roundTripFunc(func(request *http.Request) (*http.Response, error) {
		hosts <- request.URL.Host
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(strings.NewReader(`{"id":"blob-7"}`)),
			Request:    request,
		}, nil
	})}
	uploader := NewUploader(Config{Domain: "example.test", Client: client, Logger: discardLogger()})

	for _, test := range []struct {
		environment handshake.Environment
		host        string
	}{
		{handshake.Development, "blob-dev.example.test"},
		{handshake.Production, "blob.example.test"},
	} {
		target := Target{Environment: test.environment, SessionID: testSessionID}
		if _, err := uploader.UploadSync(context.Background(), []byte("data"), target, "text/plain"); err != nil {
			t.Fatalf("UploadSync(%s): %v", test.environment, err)
		}
		if host := testutil.RequireReceive(t, hosts, time.Second, "upload request"); host != test.host {
			t.Errorf("%s upload went to %q, want %q", test.environment, host, test.host)
		}
	}
}

func TestUploadSuccess(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusAccepted} {
		server, received := blobService(t, status, `{"id":"blob-42"}`)
		uploader := NewUploader(Config{BaseURL: server.URL, Logger: discardLogger()})

		ids := make(chan string, 1)
		uploader.Upload(context.Background(), []byte("\x89PNG..."), testTarget, "image/png", func(id string) { ids <- id })

		if id := testutil.RequireReceive(t, ids, 5*time.Second, "upload callback"); id != "blob-42" {
			t.Errorf("HTTP %d: blob id = %q, want blob-42", status, id)
		}
		request := testutil.RequireReceive(t, received, 5*time.Second, "upload request")
		if request.query != "validationSessionId="+testSessionID {
			t.Errorf("query = %q", request.query)
		}
		if got := request.headers.Get("File-Content-Type"); got != "image/png" {
			t.Errorf("File-Content-Type = %q, want image/png", got)
		}
		if got := request.headers.Get("Content-Type"); got != "application/octet-stream" {
			t.Errorf("Content-Type = %q, want application/octet-stream", got)
		}
		if got := request.headers.Get("Accept"); got != "application/json" {
			t.Errorf("Accept = %q, want application/json", got)
		}
		if string(request.body) != "\x89PNG..." {
			t.Errorf("body = %q", request.body)
		}
	}
}

func TestUploadFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		reply  string
		want   string
	}{
		{"service error", http.StatusOK, `{"error":"quota exceeded"}`, "quota exceeded"},
		{"server failure", http.StatusInternalServerError, `boom`, "HTTP 500"},
		{"missing id", http.StatusAccepted, `{}`, "no id"},
		{"malformed reply", http.StatusOK, `not json`, "decoding"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server, _ := blobService(t, test.status, test.reply)
			uploader := NewUploader(Config{BaseURL: server.URL, Logger: discardLogger()})

			id, err := uploader.UploadSync(context.Background(), []byte("data"), testTarget, "text/plain")
			if err == nil {
				t.Fatalf("UploadSync succeeded with id %q, want error", id)
			}
			if !strings.Contains(err.Error(), test.want) {
				t.Errorf("error = %v, want it to mention %q", err, test.want)
			}

			ids := make(chan string, 1)
			uploader.Upload(context.Background(), []byte("data"), testTarget, "text/plain", func(id string) { ids <- id })
			if id := testutil.RequireReceive(t, ids, 5*time.Second, "failure callback"); id != "" {
				t.Errorf("callback id = %q, want empty", id)
			}
		})
	}
}

func TestUploadTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	uploader := NewUploader(Config{BaseURL: server.URL, Timeout: 50 * time.Millisecond, Logger: discardLogger()})
	_, err := uploader.UploadSync(context.Background(), []byte("data"), testTarget, "text/plain")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
}

func TestUploadWithoutSession(t *testing.T) {
	uploader := NewUploader(Config{BaseURL: "http://127.0.0.1:1", Logger: discardLogger()})
	if _, err := uploader.UploadSync(context.Background(), nil, Target{}, "text/plain"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("error = %v, want ErrNoSession", err)
	}
}
