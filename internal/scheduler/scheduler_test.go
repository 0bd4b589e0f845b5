// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package scheduler

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/logging"
)

// capturePublisher records published messages per topic.
type capturePublisher struct {
	mu       sync.Mutex
	messages map[string][]*message.Message
}

func newCapturePublisher() *capturePublisher {
	return &capturePublisher{messages: make(map[string][]*message.Message)}
}

func (p *capturePublisher) Publish(topic string, msgs ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages[topic] = append(p.messages[topic], msgs...)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) published(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[topic]
}

func newTestScheduler(t *testing.T) (*Scheduler, *capturePublisher) {
	t.Helper()
	pub := newCapturePublisher()
	logger := logging.NewTestLogger(io.Discard)
	return New(pub, &logger, DefaultConfig()), pub
}

func TestScheduleHashDeterministic(t *testing.T) {
	slugs := []string{"coreweave", "lambda-labs", "vast-ai", "runpod"}
	for _, slug := range slugs {
		first := ScheduleHash(slug)
		for i := 0; i < 100; i++ {
			if got := ScheduleHash(slug); got != first {
				t.Fatalf("ScheduleHash(%q) not stable: %d vs %d", slug, got, first)
			}
		}
	}
	if ScheduleHash("coreweave") == ScheduleHash("runpod") {
		t.Error("distinct slugs should hash differently")
	}
}

func TestScheduleHashFormula(t *testing.T) {
	// h = h*31 + byte, so "ab" = 'a'*31 + 'b'.
	want := uint32('a')*31 + uint32('b')
	if got := ScheduleHash("ab"); got != want {
		t.Errorf("ScheduleHash(\"ab\") = %d, want %d", got, want)
	}
}

func TestScheduleHashIteratesBytes(t *testing.T) {
	// The rolling hash runs over UTF-8 bytes, not runes. An accented slug
	// must hash its multi-byte sequence byte by byte.
	var want uint32
	for _, b := range []byte("caf\xc3\xa9") {
		want = want*31 + uint32(b)
	}
	if got := ScheduleHash("café"); got != want {
		t.Errorf("ScheduleHash(\"café\") = %d, want %d", got, want)
	}
	if got := ScheduleHash("café"); got != 94422542 {
		t.Errorf("ScheduleHash(\"café\") = %d, want 94422542", got)
	}
}

func TestFireHoursPerTier(t *testing.T) {
	tests := []struct {
		name      string
		provider  catalog.Provider
		cadence   int
		fireCount int
	}{
		{
			name:      "enterprise fires six times",
			provider:  catalog.Provider{Slug: "coreweave", Tier: catalog.TierEnterprise, Type: catalog.ProviderTypeCloud},
			cadence:   4,
			fireCount: 6,
		},
		{
			name:      "community fires three times",
			provider:  catalog.Provider{Slug: "vast-ai", Tier: catalog.TierCommunity, Type: catalog.ProviderTypeMarketplace},
			cadence:   8,
			fireCount: 3,
		},
		{
			name:      "decentralized fires three times regardless of tier",
			provider:  catalog.Provider{Slug: "akash", Tier: catalog.TierStandard, Type: catalog.ProviderTypeDecentralized},
			cadence:   8,
			fireCount: 3,
		},
		{
			name:      "standard fires four times",
			provider:  catalog.Provider{Slug: "runpod", Tier: catalog.TierStandard, Type: catalog.ProviderTypeCloud},
			cadence:   6,
			fireCount: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cadence := CadenceHours(tt.provider)
			if cadence != tt.cadence {
				t.Fatalf("CadenceHours = %d, want %d", cadence, tt.cadence)
			}
			hours := FireHours(tt.provider.Slug, cadence)
			if len(hours) != tt.fireCount {
				t.Fatalf("FireHours = %v (%d hours), want %d", hours, len(hours), tt.fireCount)
			}
			offset := int(ScheduleHash(tt.provider.Slug) % uint32(cadence))
			for i, h := range hours {
				if want := offset + i*cadence; h != want {
					t.Errorf("hour[%d] = %d, want %d", i, h, want)
				}
			}
		})
	}
}

func TestCronForHours(t *testing.T) {
	got := CronForHours([]int{2, 8, 14, 20})
	if got != "0 2,8,14,20 * * *" {
		t.Errorf("CronForHours = %q", got)
	}
	if _, err := ParseCron(got); err != nil {
		t.Fatalf("generated expression does not parse: %v", err)
	}
}

func TestRegisterIdempotent(t *testing.T) {
	s, _ := newTestScheduler(t)
	provider := catalog.Provider{Slug: "runpod", Tier: catalog.TierStandard, Type: catalog.ProviderTypeCloud}

	for i := 0; i < 3; i++ {
		if err := s.RegisterProviderFetch(provider); err != nil {
			t.Fatalf("RegisterProviderFetch: %v", err)
		}
	}

	ids := s.JobIDs()
	if len(ids) != 1 {
		t.Fatalf("expected 1 registered job after re-registration, got %d: %v", len(ids), ids)
	}
	if ids[0] != "pricing-fetch:runpod" {
		t.Errorf("job ID = %q", ids[0])
	}
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestScheduler(t)
	expr, _ := ParseCron("0 * * * *")

	if err := s.Register(Job{Topic: TopicPricingFetch, Cron: expr}); err == nil {
		t.Error("expected error for empty job ID")
	}
	if err := s.Register(Job{ID: "x", Cron: expr}); err == nil {
		t.Error("expected error for empty topic")
	}
	if err := s.Register(Job{ID: "x", Topic: TopicPricingFetch}); err == nil {
		t.Error("expected error for nil cron")
	}
}

func TestTickPublishesDueJobs(t *testing.T) {
	s, pub := newTestScheduler(t)
	provider := catalog.Provider{Slug: "coreweave", Tier: catalog.TierEnterprise, Type: catalog.ProviderTypeCloud}
	if err := s.RegisterProviderFetch(provider); err != nil {
		t.Fatalf("RegisterProviderFetch: %v", err)
	}
	if err := s.RegisterGlobalJobs(); err != nil {
		t.Fatalf("RegisterGlobalJobs: %v", err)
	}

	// Enterprise cadence 4 means the provider fires at offset, offset+4, ...
	offset := int(ScheduleHash("coreweave") % 4)
	fire := time.Date(2026, 8, 31, offset, 0, 0, 0, time.UTC)
	s.Tick(fire)

	fetches := pub.published(TopicPricingFetch)
	if len(fetches) != 1 {
		t.Fatalf("expected 1 fetch message, got %d", len(fetches))
	}
	var job FetchJob
	if err := json.Unmarshal(fetches[0].Payload, &job); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if job.ProviderSlug != "coreweave" {
		t.Errorf("payload provider = %q", job.ProviderSlug)
	}
	wantMeta := "pricing-fetch:coreweave:" + fire.Format(time.RFC3339)
	if got := fetches[0].Metadata.Get(JobIDKey); got != wantMeta {
		t.Errorf("job metadata = %q, want %q", got, wantMeta)
	}

	// Aggregation fires at minute zero of every hour as well.
	if got := len(pub.published(TopicPricingAggregate)); got != 1 {
		t.Errorf("expected 1 aggregate message, got %d", got)
	}
	// Alert matching fires on the half hour, not now.
	if got := len(pub.published(TopicAlertMatching)); got != 0 {
		t.Errorf("expected 0 alert messages at minute 0, got %d", got)
	}

	s.Tick(time.Date(2026, 8, 31, 10, 30, 0, 0, time.UTC))
	if got := len(pub.published(TopicAlertMatching)); got != 1 {
		t.Errorf("expected 1 alert message at minute 30, got %d", got)
	}
}

func TestTickSkipsOffSchedule(t *testing.T) {
	s, pub := newTestScheduler(t)
	provider := catalog.Provider{Slug: "coreweave", Tier: catalog.TierEnterprise, Type: catalog.ProviderTypeCloud}
	if err := s.RegisterProviderFetch(provider); err != nil {
		t.Fatalf("RegisterProviderFetch: %v", err)
	}

	offset := int(ScheduleHash("coreweave") % 4)
	// One hour after a fire hour, nothing is due.
	s.Tick(time.Date(2026, 8, 31, offset+1, 0, 0, 0, time.UTC))
	if got := len(pub.published(TopicPricingFetch)); got != 0 {
		t.Errorf("expected 0 messages off schedule, got %d", got)
	}
}

func TestStartStop(t *testing.T) {
	s, _ := newTestScheduler(t)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Error("expected error starting twice")
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Stop twice is a no-op.
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestParseCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 * * * *", false},
		{"30 * * * *", false},
		{"15 */6 * * *", false},
		{"0 2,8,14,20 * * *", false},
		{"0 9-17 * * 1-5", false},
		{"*/15 * * * *", false},
		{"0 0 1 1 *", false},
		{"0 0 * * 7", false},
		{"* * * *", true},
		{"60 * * * *", true},
		{"0 24 * * *", true},
		{"0 * 0 * *", true},
		{"0 * * 13 *", true},
		{"x * * * *", true},
		{"0 5-2 * * *", true},
		{"0 */0 * * *", true},
	}

	for _, tt := range tests {
		t.Run(strings.ReplaceAll(tt.expr, " ", "_"), func(t *testing.T) {
			_, err := ParseCron(tt.expr)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestCronMatches(t *testing.T) {
	tests := []struct {
		name string
		expr string
		at   time.Time
		want bool
	}{
		{"hourly at minute zero", "0 * * * *", time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC), true},
		{"hourly off minute", "0 * * * *", time.Date(2026, 8, 31, 14, 1, 0, 0, time.UTC), false},
		{"every six hours", "15 */6 * * *", time.Date(2026, 8, 31, 12, 15, 0, 0, time.UTC), true},
		{"every six hours wrong hour", "15 */6 * * *", time.Date(2026, 8, 31, 13, 15, 0, 0, time.UTC), false},
		{"hour list", "0 2,8,14,20 * * *", time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC), true},
		{"hour list miss", "0 2,8,14,20 * * *", time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC), false},
		{"weekday range", "0 9 * * 1-5", time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC), true}, // Monday
		{"weekday range miss", "0 9 * * 1-5", time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC), false},
		{"sunday as seven", "0 0 * * 7", time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseCron(tt.expr)
			if err != nil {
				t.Fatalf("ParseCron: %v", err)
			}
			if got := expr.Matches(tt.at); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestCronNextRun(t *testing.T) {
	expr, err := ParseCron("0 */6 * * *")
	if err != nil {
		t.Fatalf("ParseCron: %v", err)
	}
	got := expr.NextRun(time.Date(2026, 8, 31, 13, 30, 0, 0, time.UTC))
	want := time.Date(2026, 8, 31, 18, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("NextRun = %v, want %v", got, want)
	}
}
