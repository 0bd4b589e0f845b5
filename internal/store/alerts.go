// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gpuradar/gpuradar/internal/models"
)

// CreateSubscription inserts an alert subscription and returns its ID.
// Confirmation happens out of band; new subscriptions start unconfirmed
// unless the caller says otherwise.
func (db *DB) CreateSubscription(ctx context.Context, sub models.AlertSubscription) (id int64, err error) {
	start := time.Now()
	defer func() { observe("create_subscription", start, err) }()

	if sub.Email == "" || sub.GPUSlug == "" {
		return 0, fmt.Errorf("subscription requires email and gpu slug")
	}
	if sub.TargetPrice <= 0 {
		return 0, fmt.Errorf("subscription target price %v not positive", sub.TargetPrice)
	}

	err = db.conn.QueryRowContext(ctx, `
		INSERT INTO alert_subscriptions (email, gpu_slug, provider_slug, target_price, active, confirmed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		sub.Email, sub.GPUSlug, nullString(sub.ProviderSlug), sub.TargetPrice,
		sub.Active, sub.Confirmed, time.Now().UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert subscription: %w", err)
	}
	return id, nil
}

// ActiveSubscriptions returns every subscription that is both active and
// confirmed, the only ones the alert matcher evaluates.
func (db *DB) ActiveSubscriptions(ctx context.Context) (subs []models.AlertSubscription, err error) {
	start := time.Now()
	defer func() { observe("active_subscriptions", start, err) }()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, email, gpu_slug, provider_slug, target_price, active, confirmed, last_notified_at
		FROM alert_subscriptions
		WHERE active AND confirmed
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("subscriptions query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var s models.AlertSubscription
		var provider sql.NullString
		var notified sql.NullTime
		if err = rows.Scan(&s.ID, &s.Email, &s.GPUSlug, &provider, &s.TargetPrice,
			&s.Active, &s.Confirmed, &notified); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		s.ProviderSlug = provider.String
		if notified.Valid {
			t := notified.Time
			s.LastNotifiedAt = &t
		}
		subs = append(subs, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}

// MarkNotified records a triggered notification and deactivates the
// subscription in the same statement, so a price that stays below target
// cannot re-notify on every cycle. Re-arming is an external concern.
func (db *DB) MarkNotified(ctx context.Context, id int64, at time.Time) (err error) {
	start := time.Now()
	defer func() { observe("mark_notified", start, err) }()

	res, err := db.conn.ExecContext(ctx, `
		UPDATE alert_subscriptions
		SET last_notified_at = ?, active = FALSE
		WHERE id = ?`,
		at.UTC(), id)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notified rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("subscription %d not found", id)
	}
	return nil
}
