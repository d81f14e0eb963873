// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package learning

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/ranklab/internal/config"
	"github.com/tomtom215/ranklab/internal/logging"
	"github.com/tomtom215/ranklab/internal/metrics"
	"github.com/tomtom215/ranklab/internal/models"
	"github.com/tomtom215/ranklab/internal/vector"
)

// CorpusProvider supplies the full post corpus for batch re-derivation.
type CorpusProvider interface {
	// AllPosts returns every stored post.
	AllPosts(ctx context.Context) ([]*models.Post, error)
}

// encodePacing bounds how fast the rebuilder re-encodes the corpus so a
// batch run cannot saturate the CPU that serves ranking traffic.
var encodePacing = rate.NewLimiter(rate.Limit(5000), 100)

// Rebuilder is the batch learning tier: it refits the projection on the
// accumulated training pairs, re-derives every item vector from post text
// through the new projection, and installs the result atomically.
type Rebuilder struct {
	encoder  *vector.ProjectedEncoder
	items    *vector.ItemStore
	provider CorpusProvider
	pairs    *PairBuffer

	maxDuration time.Duration
	batchEvery  int64

	// eventCount drives the every-N-events trigger.
	eventCount atomic.Int64

	// running makes batch runs single-flight.
	running sync.Mutex

	logger zerolog.Logger
}

// NewRebuilder creates the batch tier.
func NewRebuilder(
	encoder *vector.ProjectedEncoder,
	items *vector.ItemStore,
	provider CorpusProvider,
	pairs *PairBuffer,
	cfg config.LearningConfig,
) *Rebuilder {
	maxDuration := cfg.BatchMaxDuration
	if maxDuration <= 0 {
		maxDuration = 2 * time.Minute
	}
	batchEvery := int64(cfg.BatchEvery)
	if batchEvery <= 0 {
		batchEvery = 1000
	}
	return &Rebuilder{
		encoder:     encoder,
		items:       items,
		provider:    provider,
		pairs:       pairs,
		maxDuration: maxDuration,
		batchEvery:  batchEvery,
		logger:      logging.Logger().With().Str("component", "rebuilder").Logger(),
	}
}

// ObserveEvent counts one processed event and triggers a rebuild in the
// background when the every-N threshold is crossed.
func (r *Rebuilder) ObserveEvent(ctx context.Context) {
	if r.eventCount.Add(1)%r.batchEvery != 0 {
		return
	}
	go func() {
		if err := r.Run(ctx); err != nil {
			r.logger.Error().Err(err).Msg("triggered rebuild failed")
		}
	}()
}

// Run executes one batch cycle: refit, re-derive, swap. Single-flight; a run
// that starts while another is active returns immediately. The whole cycle is
// bounded by the configured max duration.
func (r *Rebuilder) Run(ctx context.Context) error {
	if !r.running.TryLock() {
		metrics.BatchRebuilds.WithLabelValues("skipped").Inc()
		r.logger.Debug().Msg("rebuild already running, skipping")
		return nil
	}
	defer r.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.maxDuration)
	defer cancel()

	start := time.Now()

	pairs := r.pairs.Drain()
	if len(pairs) > 0 {
		refitted := r.encoder.Projection().Refit(ctx, pairs, vector.DefaultRefitConfig())
		r.encoder.SetProjection(refitted)
	}

	count, err := r.rederive(ctx)
	if err != nil {
		metrics.BatchRebuilds.WithLabelValues("error").Inc()
		return err
	}

	elapsed := time.Since(start)
	metrics.BatchRebuilds.WithLabelValues("ok").Inc()
	metrics.BatchRebuildDuration.Observe(elapsed.Seconds())
	metrics.VectorUpdates.WithLabelValues("batch").Add(float64(count))
	metrics.StoredVectors.WithLabelValues("item").Set(float64(r.items.Count()))

	r.logger.Info().
		Int("pairs", len(pairs)).
		Int("vectors", count).
		Dur("elapsed", elapsed).
		Msg("batch rebuild complete")
	return nil
}

// rederive encodes the whole corpus through the current projection and swaps
// the vector space in one atomic replacement. Real-time adaptations made to
// the old space are superseded; the fresh derivation carries pretrained
// provenance again.
func (r *Rebuilder) rederive(ctx context.Context) (int, error) {
	posts, err := r.provider.AllPosts(ctx)
	if err != nil {
		return 0, fmt.Errorf("load corpus: %w", err)
	}

	vecs := make(map[uuid.UUID]*vector.ItemVector, len(posts))
	for _, post := range posts {
		if err := encodePacing.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rebuild deadline: %w", err)
		}
		vec, err := r.encoder.Encode(ctx, post.Text)
		if err != nil {
			return 0, fmt.Errorf("encode post %s: %w", post.ID, err)
		}
		vecs[post.ID] = &vector.ItemVector{
			PostID:    post.ID,
			AuthorID:  post.AuthorID,
			CreatedAt: post.CreatedAt,
			Reply:     post.IsReply(),
			Vec:       vec,
		}
	}

	if err := r.items.ReplaceAll(vecs); err != nil {
		return 0, fmt.Errorf("swap vector space: %w", err)
	}
	return len(vecs), nil
}
