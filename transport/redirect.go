// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"fmt"
	"net/url"
)

// redirectStrategy rewrites the scheme and host of every channel URL
// before delegating.
type redirectStrategy struct {
	inner Strategy
	base  *url.URL
}

// Redirect wraps inner so that channel URLs are dialed at endpoint's
// scheme and host while keeping their path and query. It points a
// session built for the public console at a local one, such as
// inspect-console-mock.
func Redirect(inner Strategy, endpoint string) (Strategy, error) {
	base, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("endpoint %q needs a scheme and host", endpoint)
	}
	return &redirectStrategy{inner: inner, base: base}, nil
}

func (s *redirectStrategy) Dial(ctx context.Context, channelURL string) (Conn, error) {
	target, err := url.Parse(channelURL)
	if err != nil {
		return nil, fmt.Errorf("parsing channel URL: %w", err)
	}
	target.Scheme = s.base.Scheme
	target.Host = s.base.Host
	return s.inner.Dial(ctx, target.String())
}
