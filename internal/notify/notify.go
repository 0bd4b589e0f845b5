// GPURadar - GPU Rental Price Discovery and Alerting
// Copyright 2026 GPURadar Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gpuradar/gpuradar

// Package notify builds and enqueues notification requests. Delivery is an
// external worker's job: this package only validates payloads and publishes
// them to the dispatch topic.
package notify

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Topic is the queue topic consumed by the delivery worker.
const Topic = "notifications.dispatch"

// KindKey is the message metadata key carrying the payload kind.
const KindKey = "kind"

// Payload kinds.
const (
	KindEmail   = "email"
	KindWebhook = "webhook"
	KindChat    = "chat"
)

// EmailNotification asks the delivery worker to send an email.
type EmailNotification struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body" validate:"required"`
}

// WebhookNotification asks the delivery worker to POST a payload.
type WebhookNotification struct {
	TargetURL string          `json:"target_url" validate:"required,url"`
	Payload   json.RawMessage `json:"payload" validate:"required"`
}

// ChatNotification asks the delivery worker to post a chat message.
type ChatNotification struct {
	Message string `json:"message" validate:"required"`
}

// Notifier validates and enqueues notification payloads.
type Notifier struct {
	publisher message.Publisher
	validate  *validator.Validate
}

// New creates a notifier publishing to the dispatch topic.
func New(publisher message.Publisher) *Notifier {
	return &Notifier{
		publisher: publisher,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// EnqueueEmail validates and publishes an email notification.
func (n *Notifier) EnqueueEmail(payload EmailNotification) error {
	return n.enqueue(KindEmail, payload)
}

// EnqueueWebhook validates and publishes a webhook notification.
func (n *Notifier) EnqueueWebhook(payload WebhookNotification) error {
	return n.enqueue(KindWebhook, payload)
}

// EnqueueChat validates and publishes a chat notification.
func (n *Notifier) EnqueueChat(payload ChatNotification) error {
	return n.enqueue(KindChat, payload)
}

func (n *Notifier) enqueue(kind string, payload any) error {
	if err := n.validate.Struct(payload); err != nil {
		return fmt.Errorf("invalid %s notification: %w", kind, err)
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s notification: %w", kind, err)
	}
	msg := message.NewMessage(uuid.NewString(), b)
	msg.Metadata.Set(KindKey, kind)
	if err := n.publisher.Publish(Topic, msg); err != nil {
		return fmt.Errorf("enqueue %s notification: %w", kind, err)
	}
	return nil
}
