// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/gpuradar/gpuradar/internal/config"
)

func testScrapeConfig() config.ScrapeConfig {
	return config.ScrapeConfig{
		TextTimeout:     time.Second,
		JSONTimeout:     time.Second,
		RenderTimeoutMS: 200,
		RenderGrace:     300 * time.Millisecond,
		WaitUntil:       "networkidle2",
		BlockResources:  true,
	}
}

// fakeRenderWorker consumes render requests and replies on the request's
// reply topic.
func fakeRenderWorker(t *testing.T, pubsub *gochannel.GoChannel, reply func(req RenderRequest) ([]byte, bool)) {
	t.Helper()

	requests, err := pubsub.Subscribe(context.Background(), RenderRequestTopic)
	if err != nil {
		t.Fatalf("worker subscribe: %v", err)
	}

	go func() {
		for msg := range requests {
			var req RenderRequest
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				msg.Nack()
				continue
			}
			msg.Ack()

			payload, respond := reply(req)
			if !respond {
				continue
			}
			replyTopic := msg.Metadata.Get(ReplyToKey)
			out := message.NewMessage(watermill.NewUUID(), payload)
			_ = pubsub.Publish(replyTopic, out)
		}
	}()
}

func TestFetchRenderedHTML(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close() //nolint:errcheck

	fakeRenderWorker(t, pubsub, func(req RenderRequest) ([]byte, bool) {
		if req.URL != "https://example.com/pricing" {
			t.Errorf("worker saw url %q", req.URL)
		}
		if req.TimeoutMS != 200 {
			t.Errorf("worker saw timeoutMs %d, want 200", req.TimeoutMS)
		}
		payload, _ := json.Marshal(RenderResult{
			FinalURL: "https://example.com/pricing/",
			HTML:     "<html><body>H100 $2.50/hour</body></html>",
		})
		return payload, true
	})

	client := NewClient(testScrapeConfig(), pubsub, pubsub)

	result, err := client.FetchRenderedHTML(context.Background(), "https://example.com/pricing")
	if err != nil {
		t.Fatalf("FetchRenderedHTML: %v", err)
	}
	if result.FinalURL != "https://example.com/pricing/" {
		t.Errorf("final url = %q", result.FinalURL)
	}
	if result.HTML == "" {
		t.Error("empty rendered html")
	}
}

func TestFetchRenderedHTMLTimeout(t *testing.T) {
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubsub.Close() //nolint:errcheck

	// worker never replies
	fakeRenderWorker(t, pubsub, func(req RenderRequest) ([]byte, bool) {
		return nil, false
	})

	client := NewClient(testScrapeConfig(), pubsub, pubsub)

	_, err := client.FetchRenderedHTML(context.Background(), "https://example.com/pricing")
	if !errors.Is(err, ErrRenderTimeout) {
		t.Fatalf("got %v, want ErrRenderTimeout", err)
	}
}

func TestFetchRenderedHTMLInvalidReply(t *testing.T) {
	tests := []struct {
		name   string
		result RenderResult
	}{
		{name: "empty html", result: RenderResult{FinalURL: "https://example.com/"}},
		{name: "missing final url", result: RenderResult{HTML: "<html></html>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
			defer pubsub.Close() //nolint:errcheck

			fakeRenderWorker(t, pubsub, func(req RenderRequest) ([]byte, bool) {
				payload, _ := json.Marshal(tt.result)
				return payload, true
			})

			client := NewClient(testScrapeConfig(), pubsub, pubsub)

			_, err := client.FetchRenderedHTML(context.Background(), "https://example.com/pricing")
			if !errors.Is(err, ErrInvalidRenderResult) {
				t.Fatalf("got %v, want ErrInvalidRenderResult", err)
			}
		})
	}
}
