// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Package scrape is the transport layer for provider adapters. It exposes
// plain-text fetch, structured JSON fetch, and browser-rendered HTML fetch.
// The first two run in-process over HTTP; rendering is delegated to an
// external worker over a durable queue because the rendering engine is
// expensive and crash-prone and must not share a process with the
// lightweight pricing workers.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/gpuradar/gpuradar/internal/config"
)

// maxErrorBodySize limits how much of an error response body is read for
// diagnostics.
const maxErrorBodySize = 64 * 1024 // 64KB

// Client performs the network round trips for adapters. Every call
// carries an explicit timeout budget; expiry cancels the operation
// cooperatively and surfaces as a transport failure.
type Client struct {
	httpClient *http.Client
	publisher  message.Publisher
	subscriber message.Subscriber
	cfg        config.ScrapeConfig
}

// NewClient creates a scrape client. publisher and subscriber carry the
// render request/reply traffic and may be nil when rendered-HTML fetch is
// not needed (static mode).
func NewClient(cfg config.ScrapeConfig, publisher message.Publisher, subscriber message.Subscriber) *Client {
	return &Client{
		// Per-request timeouts come from contexts; the client-level
		// timeout is a hard backstop.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		publisher:  publisher,
		subscriber: subscriber,
		cfg:        cfg,
	}
}

// FetchText retrieves a URL as plain text within the text timeout budget.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	body, err := c.fetch(ctx, url, c.cfg.TextTimeout, "text/html, text/plain")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchJSON retrieves a URL and unmarshals the response into target within
// the JSON timeout budget.
func (c *Client) FetchJSON(ctx context.Context, url string, target interface{}) error {
	body, err := c.fetch(ctx, url, c.cfg.JSONTimeout, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("decode json from %s: %w", url, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, url string, timeout time.Duration, accept string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", "gpuradar/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-side close

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d: %s", url, resp.StatusCode, readBodyForError(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body from %s: %w", url, err)
	}
	return body, nil
}

// readBodyForError reads at most maxErrorBodySize of a response body for
// error reporting.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}
