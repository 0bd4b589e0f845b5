// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gpuradar/gpuradar/internal/catalog"
)

// CadenceHours returns the re-scrape interval for a provider. Enterprise
// sources move slowly and matter most; community and decentralized
// sources churn and rate-limit, so they get the longest interval.
func CadenceHours(p catalog.Provider) int {
	switch {
	case p.Tier == catalog.TierEnterprise:
		return 4
	case p.Tier == catalog.TierCommunity || p.Type == catalog.ProviderTypeDecentralized:
		return 8
	default:
		return 6
	}
}

// ScheduleHash computes a stable 32-bit rolling hash of a provider slug:
// h = (h*31 + byte) mod 2^32 over each byte, seeded at 0. The formula is
// part of the scheduling contract: the same slug must map to the same
// phase offset on every run of every worker, so do not replace it with
// another hash.
func ScheduleHash(slug string) uint32 {
	var h uint32
	for i := 0; i < len(slug); i++ {
		h = h*31 + uint32(slug[i])
	}
	return h
}

// FireHours returns the hour-of-day values at which a provider's fetch job
// fires: a deterministic phase offset in [0, cadence) keeps providers
// spread across the day without any coordination.
func FireHours(slug string, cadenceHours int) []int {
	offset := int(ScheduleHash(slug) % uint32(cadenceHours))
	hours := make([]int, 0, 24/cadenceHours)
	for h := offset; h < 24; h += cadenceHours {
		hours = append(hours, h)
	}
	return hours
}

// CronForHours renders fire hours as a 5-field cron expression firing at
// minute zero of each hour.
func CronForHours(hours []int) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = strconv.Itoa(h)
	}
	return fmt.Sprintf("0 %s * * *", strings.Join(parts, ","))
}
