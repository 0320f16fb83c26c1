// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package plugins

import (
	"context"
	"log/slog"
	"sync"

	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/inspect/blob"
	"github.com/bureau-foundation/inspect/event"
	"github.com/bureau-foundation/inspect/plugin"
)

// Capturer produces an image (or other rendering) of the host's
// current view.
type Capturer interface {
	Capture(ctx context.Context) (data []byte, contentType string, err error)
}

// CapturerFunc adapts a function to Capturer.
type CapturerFunc func(ctx context.Context) ([]byte, string, error)

// Capture calls f.
func (f CapturerFunc) Capture(ctx context.Context) ([]byte, string, error) { return f(ctx) }

// ViewCapturer captures a terminal view as plain text. Styling escape
// sequences are stripped so the console shows readable text.
type ViewCapturer struct {
	View func() string
}

// Capture implements Capturer.
func (c ViewCapturer) Capture(context.Context) ([]byte, string, error) {
	return []byte(ansi.Strip(c.View())), "text/plain", nil
}

// Screenshot answers screenshot commands by capturing, uploading the
// capture to the blob service, and sending a blob event carrying the
// blob id and MIME type. Nothing is sent if either step fails.
type Screenshot struct {
	plugin.Base
	capturer Capturer
	uploader *blob.Uploader
	logger   *slog.Logger

	mutex   sync.Mutex
	session plugin.Session
}

// NewScreenshot creates the plugin.
func NewScreenshot(capturer Capturer, uploader *blob.Uploader, logger *slog.Logger) *Screenshot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Screenshot{
		capturer: capturer,
		uploader: uploader,
		logger:   logger.With("plugin", CommandScreenshot),
	}
}

func (p *Screenshot) Vendor() string      { return event.ControlVendor }
func (p *Screenshot) CommandType() string { return CommandScreenshot }

func (p *Screenshot) OnRegistered(session plugin.Session) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.session = session
}

// OnEventReceived captures on a separate goroutine so that the inbound
// queue keeps moving while the capture and upload run.
func (p *Screenshot) OnEventReceived(e event.Event) {
	p.mutex.Lock()
	session := p.session
	p.mutex.Unlock()
	if session == nil {
		return
	}
	go p.capture(context.Background(), session)
}

func (p *Screenshot) capture(ctx context.Context, session plugin.Session) {
	data, contentType, err := p.capturer.Capture(ctx)
	if err != nil {
		p.logger.Warn("screenshot capture failed", "error", err)
		return
	}
	target := blob.Target{Environment: session.Environment(), SessionID: session.SessionID()}
	p.uploader.Upload(ctx, data, target, contentType, func(blobID string) {
		if blobID == "" {
			return
		}
		session.Send(event.New(event.ControlVendor, BlobEventType, map[string]any{
			"blobId":   blobID,
			"mimeType": contentType,
		}))
	})
}
