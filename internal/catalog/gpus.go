// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package catalog

import "regexp"

// GPUPattern maps a free-text GPU mention to a canonical catalog slug.
// Patterns are evaluated in order and the first match wins per slug, so
// memory- or form-factor-qualified variants MUST precede the family
// fallback: "H100 PCIe" has to be tested before the bare "H100" pattern,
// otherwise every PCIe mention would resolve to the SXM slug.
type GPUPattern struct {
	Slug    string
	Name    string
	Pattern *regexp.Regexp
}

// GPUPatterns is the ordered closed alias set. Bare family mentions
// resolve to the variant providers most commonly mean: "H100" without a
// qualifier is almost always the SXM part, "A100" the 40GB part.
var GPUPatterns = []GPUPattern{
	{Slug: "h200", Name: "NVIDIA H200", Pattern: regexp.MustCompile(`(?i)\bH200\b`)},
	{Slug: "h100-pcie", Name: "NVIDIA H100 PCIe", Pattern: regexp.MustCompile(`(?i)\bH100[\s-]*(?:PCIE|PCI-E)\b`)},
	{Slug: "h100-nvl", Name: "NVIDIA H100 NVL", Pattern: regexp.MustCompile(`(?i)\bH100[\s-]*NVL\b`)},
	{Slug: "h100-sxm", Name: "NVIDIA H100 SXM", Pattern: regexp.MustCompile(`(?i)\bH100\b`)},
	{Slug: "a100-80gb", Name: "NVIDIA A100 80GB", Pattern: regexp.MustCompile(`(?i)\bA100[\s-]*(?:SXM4?[\s-]*)?80\s*GB?\b`)},
	{Slug: "a100-40gb", Name: "NVIDIA A100 40GB", Pattern: regexp.MustCompile(`(?i)\bA100\b`)},
	{Slug: "l40s", Name: "NVIDIA L40S", Pattern: regexp.MustCompile(`(?i)\bL40S\b`)},
	{Slug: "l4", Name: "NVIDIA L4", Pattern: regexp.MustCompile(`(?i)\bL4\b`)},
	{Slug: "a6000", Name: "NVIDIA RTX A6000", Pattern: regexp.MustCompile(`(?i)\b(?:RTX\s*)?A6000\b`)},
	{Slug: "rtx-6000-ada", Name: "NVIDIA RTX 6000 Ada", Pattern: regexp.MustCompile(`(?i)\bRTX\s*6000\s*Ada\b`)},
	{Slug: "rtx-4090", Name: "NVIDIA GeForce RTX 4090", Pattern: regexp.MustCompile(`(?i)\b(?:RTX\s*)?4090\b`)},
	{Slug: "rtx-3090", Name: "NVIDIA GeForce RTX 3090", Pattern: regexp.MustCompile(`(?i)\b(?:RTX\s*)?3090\b`)},
	{Slug: "v100", Name: "NVIDIA V100", Pattern: regexp.MustCompile(`(?i)\bV100\b`)},
	{Slug: "t4", Name: "NVIDIA T4", Pattern: regexp.MustCompile(`(?i)\bT4\b`)},
	{Slug: "mi300x", Name: "AMD Instinct MI300X", Pattern: regexp.MustCompile(`(?i)\bMI300X\b`)},
}

// GPUName returns the display name for a catalog slug, or the slug itself
// when the slug is not part of the alias set.
func GPUName(slug string) string {
	for _, p := range GPUPatterns {
		if p.Slug == slug {
			return p.Name
		}
	}
	return slug
}

// NormalizeGPU resolves a free-text GPU description to a catalog slug
// using the ordered alias set. Returns false when the text mentions no
// known GPU.
func NormalizeGPU(text string) (string, bool) {
	for _, p := range GPUPatterns {
		if p.Pattern.MatchString(text) {
			return p.Slug, true
		}
	}
	return "", false
}
