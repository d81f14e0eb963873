// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package learning

import (
	"context"
	"time"
)

// ConsumerService adapts the Consumer to a supervised service.
type ConsumerService struct {
	Consumer *Consumer
}

// Serve runs the event router until ctx is canceled.
func (s *ConsumerService) Serve(ctx context.Context) error {
	return s.Consumer.Run(ctx)
}

// String names the service in supervisor logs.
func (s *ConsumerService) String() string { return "engagement-consumer" }

// BatchTicker runs the rebuilder on a fixed interval, independent of the
// every-N-events trigger, so a quiet system still converges.
type BatchTicker struct {
	Rebuilder *Rebuilder
	Interval  time.Duration
}

// Serve ticks until ctx is canceled. Run errors are logged by the rebuilder
// and do not restart the service; a failed cycle retries on the next tick.
func (t *BatchTicker) Serve(ctx context.Context) error {
	interval := t.Interval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			// Run errors are logged inside; the ticker keeps going.
			_ = t.Rebuilder.Run(ctx)
		}
	}
}

// String names the service in supervisor logs.
func (t *BatchTicker) String() string { return "batch-ticker" }
