// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/goccy/go-json"

	"github.com/tomtom215/ranklab/internal/models"
)

// Consumer runs the Watermill router that drives both learning tiers from
// the engagement topic.
type Consumer struct {
	router *message.Router
}

// NewConsumer wires the engagement handler into a router with recovery and
// retry middleware. Malformed messages are acked and dropped; transient
// update failures retry with backoff before giving up.
func NewConsumer(bus *Bus, updater *RealtimeUpdater, rebuilder *Rebuilder) (*Consumer, error) {
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: 15 * time.Second,
	}, bus.logger)
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      3,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2.0,
		}.Middleware,
		middleware.CorrelationID,
	)

	handler := &engagementHandler{updater: updater, rebuilder: rebuilder}
	router.AddNoPublisherHandler(
		"engagement-updater",
		models.EngagementTopic,
		bus.Subscriber(),
		handler.Handle,
	)

	return &Consumer{router: router}, nil
}

// Run blocks processing events until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.router.Run(ctx)
}

// Running closes when the router is accepting messages.
func (c *Consumer) Running() chan struct{} {
	return c.router.Running()
}

// Close stops the router.
func (c *Consumer) Close() error {
	return c.router.Close()
}

// engagementHandler applies one engagement event to both learning tiers.
type engagementHandler struct {
	updater   *RealtimeUpdater
	rebuilder *Rebuilder
}

// Handle decodes and applies one event. Decode and validation failures are
// permanent: returning nil acks the message instead of poisoning the retry
// loop with it.
func (h *engagementHandler) Handle(msg *message.Message) error {
	var event models.EngagementEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil
	}

	ctx := msg.Context()
	if err := h.updater.Apply(ctx, &event); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			return nil
		}
		return err
	}

	h.rebuilder.ObserveEvent(context.WithoutCancel(ctx))
	return nil
}
