// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/bureau-foundation/inspect/handshake"
	"github.com/bureau-foundation/inspect/lib/netutil"
)

// DefaultTimeout bounds one upload request.
const DefaultTimeout = 30 * time.Second

const uploadPath = "/api/FileUpload"

// ErrNoSession is reported when an upload is attempted without a
// console session.
var ErrNoSession = errors.New("blob: no session id")

// Target identifies the console session an asset belongs to. Its
// environment selects the blob service host.
type Target struct {
	Environment handshake.Environment
	SessionID   string
}

// Config configures an Uploader.
type Config struct {
	// Domain is the blob service domain. Empty uses
	// handshake.DefaultDomain.
	Domain string

	// BaseURL replaces the derived scheme and host for every
	// environment, e.g. for a local console mock. Optional.
	BaseURL string

	// Timeout bounds each upload. Zero uses DefaultTimeout.
	Timeout time.Duration

	// Client defaults to a client with no timeout of its own; the
	// per-upload context carries the deadline.
	Client *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Uploader posts assets to the blob service. It is safe for
// concurrent use.
type Uploader struct {
	domain  string
	baseURL string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// uploadResponse is the blob service reply.
type uploadResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// NewUploader creates an Uploader.
func NewUploader(config Config) *Uploader {
	domain := config.Domain
	if domain == "" {
		domain = handshake.DefaultDomain
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		domain:  domain,
		baseURL: config.BaseURL,
		timeout: timeout,
		client:  client,
		logger:  logger.With("component", "blob-uploader"),
	}
}

// Endpoint returns the upload URL for target, on the blob host of the
// target's environment.
func (u *Uploader) Endpoint(target Target) string {
	base := u.baseURL
	if base == "" {
		base = "https://blob" + target.Environment.Suffix() + "." + u.domain
	}
	return base + uploadPath + "?validationSessionId=" + url.QueryEscape(target.SessionID)
}

// Upload posts data in the background and calls callback with the
// blob id, or with "" if the upload failed. Failures are logged and
// never retried. callback runs on the upload goroutine.
func (u *Uploader) Upload(ctx context.Context, data []byte, target Target, contentType string, callback func(blobID string)) {
	go func() {
		blobID, err := u.UploadSync(ctx, data, target, contentType)
		if err != nil {
			u.logger.Warn("blob upload failed",
				"session_id", target.SessionID,
				"environment", target.Environment,
				"content_type", contentType,
				"bytes", len(data),
				"error", err,
			)
		}
		if callback != nil {
			callback(blobID)
		}
	}()
}

// UploadSync posts data and returns the blob id.
func (u *Uploader) UploadSync(ctx context.Context, data []byte, target Target, contentType string) (string, error) {
	if target.SessionID == "" {
		return "", ErrNoSession
	}
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, u.Endpoint(target), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("building upload request: %w", err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("Content-Type", "application/octet-stream")
	request.Header.Set("File-Content-Type", contentType)

	started := time.Now()
	response, err := u.client.Do(request)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("upload returned HTTP %d: %s", response.StatusCode, netutil.ErrorBody(response.Body))
	}
	var reply uploadResponse
	if err := netutil.DecodeResponse(response.Body, &reply); err != nil {
		return "", err
	}
	if reply.Error != "" {
		return "", fmt.Errorf("blob service error: %s", reply.Error)
	}
	if reply.ID == "" {
		return "", errors.New("blob service returned no id")
	}
	u.logger.Debug("blob uploaded",
		"blob_id", reply.ID,
		"bytes", len(data),
		"duration", time.Since(started),
	)
	return reply.ID, nil
}
