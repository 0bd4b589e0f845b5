// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package adapters

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/gpuradar/gpuradar/internal/catalog"
	"github.com/gpuradar/gpuradar/internal/metrics"
	"github.com/gpuradar/gpuradar/internal/models"
	"github.com/gpuradar/gpuradar/internal/scrape"
)

// Window bounds around a GPU mention. A price token outside this window is
// never attributed to the mention.
const (
	windowBefore = 240
	windowAfter  = 480
)

var (
	// pricePattern matches "$2.50/hour", "$ 1.99 /hr", "$3 per hour".
	pricePattern = regexp.MustCompile(`(?i)\$\s*([0-9][0-9,]*(?:\.[0-9]+)?)\s*(?:/|per[\s-]*)\s*(?:gpu[\s/-]*)?(?:hr|hour)`)

	// countPattern matches GPU multiplicity like "2x GPU" or "8x".
	countPattern = regexp.MustCompile(`(?i)\b([0-9]{1,2})\s*x\b`)

	// Tag stripping for rendered HTML. Script and style bodies go first
	// so their contents never reach the scanner.
	scriptBlocks = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</\s*(?:script|style|noscript)\s*>`)
	htmlTags     = regexp.MustCompile(`<[^>]*>`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// renderFetcher is the slice of the scrape client the heuristic adapter
// needs; narrowed for testability.
type renderFetcher interface {
	FetchRenderedHTML(ctx context.Context, url string) (*scrape.RenderResult, error)
}

// HeuristicAdapter fetches a provider's public pricing page as rendered
// HTML and extracts price observations by scanning plain text around known
// GPU-model mentions.
type HeuristicAdapter struct {
	client renderFetcher
}

// NewHeuristicAdapter creates the pricing-URL heuristic adapter.
func NewHeuristicAdapter(client renderFetcher) *HeuristicAdapter {
	return &HeuristicAdapter{client: client}
}

// Name implements Adapter.
func (a *HeuristicAdapter) Name() string { return "heuristic" }

// FetchPricing implements Adapter. A pricing page with no extractable
// signal yields an empty result, not an error; only the transport round
// trip can fail the job.
func (a *HeuristicAdapter) FetchPricing(ctx context.Context, provider catalog.Provider) ([]models.PricingObservation, error) {
	if provider.PricingURL == "" {
		return nil, fmt.Errorf("provider %s has no pricing url", provider.Slug)
	}

	result, err := a.client.FetchRenderedHTML(ctx, provider.PricingURL)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", provider.PricingURL, err)
	}

	text := StripHTML(result.HTML)
	return a.extract(text, provider), nil
}

// StripHTML reduces rendered HTML to scannable plain text: script/style
// bodies removed, tags dropped, whitespace collapsed.
func StripHTML(html string) string {
	text := scriptBlocks.ReplaceAllString(html, " ")
	text = htmlTags.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// extract scans text for GPU mentions and derives observations. Patterns
// run in catalog order so qualified variants claim their mentions before
// the family fallback sees them; results are deduplicated by
// (gpu slug, gpu count) with the first candidate winning.
func (a *HeuristicAdapter) extract(text string, provider catalog.Provider) []models.PricingObservation {
	now := time.Now().UTC()

	var observations []models.PricingObservation
	seen := make(map[string]bool) // keyed gpu_slug:count

	// text ranges already matched by an earlier, more specific pattern
	var claimed [][2]int

	for _, gp := range catalog.GPUPatterns {
		for _, loc := range gp.Pattern.FindAllStringIndex(text, -1) {
			if overlapsClaimed(claimed, loc[0], loc[1]) {
				continue
			}
			claimed = append(claimed, [2]int{loc[0], loc[1]})

			window := textWindow(text, loc[0], loc[1])

			priceMatch := pricePattern.FindStringSubmatch(window)
			if priceMatch == nil {
				metrics.ExtractionCandidatesSkipped.WithLabelValues(provider.Slug, "no_price").Inc()
				continue
			}
			price, err := strconv.ParseFloat(strings.ReplaceAll(priceMatch[1], ",", ""), 64)
			if err != nil || price <= 0 || math.IsInf(price, 0) || math.IsNaN(price) {
				metrics.ExtractionCandidatesSkipped.WithLabelValues(provider.Slug, "invalid_price").Inc()
				continue
			}

			count := 1
			if countMatch := countPattern.FindStringSubmatch(window); countMatch != nil {
				if n, err := strconv.Atoi(countMatch[1]); err == nil && n >= 1 {
					count = n
				}
			}

			key := gp.Slug + ":" + strconv.Itoa(count)
			if seen[key] {
				metrics.ExtractionCandidatesSkipped.WithLabelValues(provider.Slug, "duplicate").Inc()
				continue
			}
			seen[key] = true

			evidence, _ := json.Marshal(map[string]string{"window": window})

			observations = append(observations, models.PricingObservation{
				ProviderSlug: provider.Slug,
				GPUSlug:      gp.Slug,
				InstanceID:   fmt.Sprintf("%s-%dx-%s", gp.Slug, count, provider.Slug),
				InstanceName: fmt.Sprintf("%dx %s", count, gp.Name),
				GPUCount:     count,
				PricePerHour: price,
				Currency:     "USD",
				Availability: models.AvailabilityAvailable,
				SourceURL:    provider.PricingURL,
				RawEvidence:  evidence,
				ObservedAt:   now,
			})
		}
	}

	return observations
}

// textWindow bounds the scan region around a mention at [start, end).
func textWindow(text string, start, end int) string {
	lo := start - windowBefore
	if lo < 0 {
		lo = 0
	}
	hi := end + windowAfter
	if hi > len(text) {
		hi = len(text)
	}
	return text[lo:hi]
}

func overlapsClaimed(claimed [][2]int, start, end int) bool {
	for _, c := range claimed {
		if start < c[1] && end > c[0] {
			return true
		}
	}
	return false
}
