// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenNoPath(t *testing.T) {
	providers, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(providers) == 0 {
		t.Fatal("built-in catalog is empty")
	}
	seen := make(map[string]bool)
	for _, p := range providers {
		if p.Slug == "" {
			t.Errorf("provider %d missing slug", p.ID)
		}
		if seen[p.Slug] {
			t.Errorf("duplicate slug %q", p.Slug)
		}
		seen[p.Slug] = true
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `providers:
  - id: 1
    slug: coreweave
    name: CoreWeave
    pricing_url: https://www.coreweave.com/pricing
    type: cloud
    tier: enterprise
    active: true
  - id: 2
    slug: vast-ai
    name: Vast.ai
    type: marketplace
    tier: community
    has_public_api: true
    active: false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	providers, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(providers) != 2 {
		t.Fatalf("got %d providers, want 2", len(providers))
	}
	if providers[0].Slug != "coreweave" || providers[0].Tier != TierEnterprise {
		t.Errorf("first provider = %+v", providers[0])
	}
	if providers[1].Type != ProviderTypeMarketplace || providers[1].Active {
		t.Errorf("second provider = %+v", providers[1])
	}

	active := ActiveProviders(providers)
	if len(active) != 1 || active[0].Slug != "coreweave" {
		t.Errorf("active providers = %+v", active)
	}
}

func TestLoadRejectsBadCatalogs(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("providers: []\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(empty); err == nil {
		t.Error("expected error for empty provider list")
	}

	dup := filepath.Join(dir, "dup.yaml")
	content := `providers:
  - slug: runpod
    type: cloud
    tier: standard
  - slug: runpod
    type: cloud
    tier: standard
`
	if err := os.WriteFile(dup, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dup); err == nil {
		t.Error("expected error for duplicate slug")
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
