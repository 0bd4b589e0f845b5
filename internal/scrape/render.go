// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package scrape

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/gpuradar/gpuradar/internal/metrics"
)

// Render queue topics. Requests land on a durable topic consumed by the
// external rendering worker; each reply arrives on a per-request topic
// derived from the correlation ID.
const (
	RenderRequestTopic      = "render.requests"
	RenderResultTopicPrefix = "render.results."
)

// Message metadata keys on render requests.
const (
	CorrelationIDKey = "correlation_id"
	ReplyToKey       = "reply_to"
)

var (
	// ErrRenderTimeout indicates the rendering worker did not reply
	// within the deadline.
	ErrRenderTimeout = errors.New("render request timed out")

	// ErrInvalidRenderResult indicates the worker replied without
	// usable rendered HTML or a final URL.
	ErrInvalidRenderResult = errors.New("invalid render result")
)

// RenderRequest is the payload enqueued for the rendering worker. Field
// names are the wire contract with the worker.
type RenderRequest struct {
	URL            string `json:"url"`
	TimeoutMS      int    `json:"timeoutMs"`
	WaitUntil      string `json:"waitUntil,omitempty"`
	BlockResources bool   `json:"blockResources,omitempty"`
}

// RenderResult is the worker's reply.
type RenderResult struct {
	FinalURL string `json:"finalUrl"`
	HTML     string `json:"html"`
}

// FetchRenderedHTML fetches a URL as browser-rendered HTML via the render
// queue. It publishes a request carrying a correlation ID, then waits for
// the correlated reply up to the render timeout plus a fixed grace period.
// Cancellation or deadline expiry tears down the reply subscription so no
// consumer leaks on the queue.
func (c *Client) FetchRenderedHTML(ctx context.Context, url string) (*RenderResult, error) {
	if c.publisher == nil || c.subscriber == nil {
		return nil, fmt.Errorf("render queue not configured")
	}

	correlationID := uuid.New().String()
	replyTopic := RenderResultTopicPrefix + correlationID
	deadline := time.Duration(c.cfg.RenderTimeoutMS)*time.Millisecond + c.cfg.RenderGrace

	start := time.Now()

	// Subscribe before publishing so the reply cannot slip past us. The
	// subscription lives in its own cancellable context; cancelling it
	// is what releases the queue consumer on every exit path.
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	replies, err := c.subscriber.Subscribe(subCtx, replyTopic)
	if err != nil {
		return nil, fmt.Errorf("subscribe render replies: %w", err)
	}

	payload, err := json.Marshal(RenderRequest{
		URL:            url,
		TimeoutMS:      c.cfg.RenderTimeoutMS,
		WaitUntil:      c.cfg.WaitUntil,
		BlockResources: c.cfg.BlockResources,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal render request: %w", err)
	}

	msg := message.NewMessage(correlationID, payload)
	msg.Metadata.Set(CorrelationIDKey, correlationID)
	msg.Metadata.Set(ReplyToKey, replyTopic)

	if err := c.publisher.Publish(RenderRequestTopic, msg); err != nil {
		return nil, fmt.Errorf("publish render request: %w", err)
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case reply, ok := <-replies:
		if !ok {
			metrics.RenderRequestsTotal.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: reply channel closed", ErrInvalidRenderResult)
		}
		reply.Ack()

		var result RenderResult
		if err := json.Unmarshal(reply.Payload, &result); err != nil {
			metrics.RenderRequestsTotal.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInvalidRenderResult, err)
		}
		if result.HTML == "" || result.FinalURL == "" {
			metrics.RenderRequestsTotal.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%w: missing html or final url", ErrInvalidRenderResult)
		}

		metrics.RenderRequestDuration.Observe(time.Since(start).Seconds())
		metrics.RenderRequestsTotal.WithLabelValues("success").Inc()
		return &result, nil

	case <-timer.C:
		metrics.RenderRequestsTotal.WithLabelValues("timeout").Inc()
		return nil, fmt.Errorf("%w: no reply within %s for %s", ErrRenderTimeout, deadline, url)

	case <-ctx.Done():
		return nil, fmt.Errorf("render request cancelled: %w", ctx.Err())
	}
}
