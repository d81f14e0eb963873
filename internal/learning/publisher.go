// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package learning

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/ranklab/internal/models"
)

// Publisher publishes engagement events onto the bus behind a circuit
// breaker, so a broken transport fails ingestion fast instead of stacking up
// blocked requests.
type Publisher struct {
	publisher message.Publisher
	breaker   *gobreaker.CircuitBreaker[any]
}

// NewPublisher wraps the bus publisher.
func NewPublisher(bus *Bus) *Publisher {
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "engagement-publisher",
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &Publisher{publisher: bus.Publisher(), breaker: breaker}
}

// Publish validates, serializes, and publishes one engagement event.
func (p *Publisher) Publish(event *models.EngagementEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	msg := message.NewMessage(event.EventID.String(), payload)
	msg.Metadata.Set("action", string(event.Action))
	msg.Metadata.Set("user_id", event.UserID.String())

	_, err = p.breaker.Execute(func() (any, error) {
		return nil, p.publisher.Publish(event.Topic(), msg)
	})
	if err != nil {
		return fmt.Errorf("publish engagement event: %w", err)
	}
	return nil
}
