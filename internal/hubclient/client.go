// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package hubclient builds the authenticated HTTP client used to talk to
// the remote model-hub API and file-resolve endpoints. It is deliberately
// thin: it does not retry (retry policy belongs to the downloader) and it
// does not rate-limit (that is internal/ratelimit's job at the byte level,
// and internal/hubapi's x/time/rate limiter at the request level).
package hubclient

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Client wraps an *http.Client configured with hub-appropriate transport
// tuning, grounded on the teacher's buildHTTPClient.
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

// Build constructs a Client with the given request timeout. timeout <= 0
// disables the per-request deadline (callers are expected to use context
// deadlines instead in that case).
func Build(timeout time.Duration) *Client {
	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Transport: transport, Timeout: timeout},
		UserAgent: "hubdl/1.0",
	}
}

// NewRequest builds a method request for url with context ctx, attaching
// Authorization: Bearer <token> only when token is non-empty.
func (c *Client) NewRequest(ctx context.Context, method, url, token string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("hubclient: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	addAuth(req, token)
	return req, nil
}

// addAuth attaches a bearer token header iff token is present and non-empty.
func addAuth(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// Get issues a GET to url with the given token and returns the raw
// response. The caller owns resp.Body and must close it. Transport errors
// are returned as-is; Get never retries.
func (c *Client) Get(ctx context.Context, url, token string) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, url, token)
	if err != nil {
		return nil, err
	}
	return c.HTTP.Do(req)
}

// RangeGet issues a GET with a "Range: bytes=start-end" header. end < 0
// requests to-end-of-file (open-ended range).
func (c *Client) RangeGet(ctx context.Context, url, token string, start, end int64) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, url, token)
	if err != nil {
		return nil, err
	}
	if end >= 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", start, end))
	} else {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", start))
	}
	return c.HTTP.Do(req)
}

// Head issues a HEAD request to url with the given token and returns the raw
// response. The downloader does not use it; it probes size with RangeGet.
func (c *Client) Head(ctx context.Context, url, token string) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodHead, url, token)
	if err != nil {
		return nil, err
	}
	return c.HTTP.Do(req)
}
