// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package learning

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ranklab/internal/config"
	"github.com/tomtom215/ranklab/internal/logging"
	"github.com/tomtom215/ranklab/internal/metrics"
	"github.com/tomtom215/ranklab/internal/models"
	"github.com/tomtom215/ranklab/internal/vector"
)

// PostProvider is the narrow relational dependency of the learning path.
type PostProvider interface {
	// Post returns one post, or an error if it does not exist.
	Post(ctx context.Context, postID uuid.UUID) (*models.Post, error)
}

// RealtimeUpdater applies the incremental per-event vector updates.
//
// Updates for the same (user, post) pair are serialized through a striped
// mutex table so the read-modify-write of both vectors is atomic per pair;
// unrelated pairs proceed concurrently. Ranking reads are never blocked: the
// stores install fresh immutable slices, so a concurrent request simply sees
// the pre-update values.
type RealtimeUpdater struct {
	users    *vector.UserStore
	items    *vector.ItemStore
	encoder  vector.Encoder
	provider PostProvider
	pairs    *PairBuffer

	itemRate  float64
	baseAlpha float64

	stripes []sync.Mutex
	logger  zerolog.Logger
}

// NewRealtimeUpdater creates the real-time update tier.
func NewRealtimeUpdater(
	users *vector.UserStore,
	items *vector.ItemStore,
	encoder vector.Encoder,
	provider PostProvider,
	pairs *PairBuffer,
	cfg config.LearningConfig,
) *RealtimeUpdater {
	stripes := cfg.PairStripes
	if stripes <= 0 {
		stripes = 256
	}
	return &RealtimeUpdater{
		users:     users,
		items:     items,
		encoder:   encoder,
		provider:  provider,
		pairs:     pairs,
		itemRate:  cfg.ItemRate,
		baseAlpha: cfg.UserBaseAlpha,
		stripes:   make([]sync.Mutex, stripes),
		logger:    logging.Logger().With().Str("component", "realtime_updater").Logger(),
	}
}

// Apply processes one engagement event.
//
// Zero-signal actions (views) are counted but move no vectors. For signal
// actions the user vector blends toward (or away from) the item vector with
// alpha = min(baseAlpha, 1/(count+1)), then the item vector nudges toward the
// updated user vector and flips to adapted provenance.
func (u *RealtimeUpdater) Apply(ctx context.Context, event *models.EngagementEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	metrics.LearningEvents.WithLabelValues(string(event.Action)).Inc()

	signal := event.Action.Signal()
	if signal == 0 {
		return nil
	}

	stripe := &u.stripes[u.stripeFor(event.UserID, event.PostID)]
	stripe.Lock()
	defer stripe.Unlock()

	itemVec, err := u.ensureItemVector(ctx, event.PostID)
	if err != nil {
		return fmt.Errorf("ensure item vector: %w", err)
	}

	updated, err := u.users.Update(event.UserID, itemVec.Vec, signal, u.baseAlpha)
	if err != nil {
		return fmt.Errorf("update user vector: %w", err)
	}

	err = u.items.Mutate(event.PostID, func(vec []float64) []float64 {
		return vector.Nudge(vec, updated.Vec, u.itemRate, signal)
	})
	if err != nil {
		return fmt.Errorf("update item vector: %w", err)
	}

	metrics.VectorUpdates.WithLabelValues("realtime").Add(2)
	metrics.StoredVectors.WithLabelValues("user").Set(float64(u.users.Count()))
	metrics.StoredVectors.WithLabelValues("item").Set(float64(u.items.Count()))

	u.pairs.Add(vector.TrainingPair{
		User:  updated.Vec,
		Base:  itemVec.Vec,
		Label: signal > 0,
	})

	u.logger.Debug().
		Str("user_id", event.UserID.String()).
		Str("post_id", event.PostID.String()).
		Str("action", string(event.Action)).
		Float64("signal", signal).
		Msg("vectors updated")
	return nil
}

// ensureItemVector returns the stored vector for the post, encoding and
// storing it on first engagement.
func (u *RealtimeUpdater) ensureItemVector(ctx context.Context, postID uuid.UUID) (*vector.ItemVector, error) {
	iv, err := u.items.Get(postID)
	if err == nil {
		return iv, nil
	}
	if !errors.Is(err, vector.ErrVectorNotFound) {
		return nil, err
	}

	post, err := u.provider.Post(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("load post: %w", err)
	}
	vec, err := u.encoder.Encode(ctx, post.Text)
	if err != nil {
		return nil, fmt.Errorf("encode post: %w", err)
	}

	iv = &vector.ItemVector{
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		CreatedAt: post.CreatedAt,
		Reply:     post.IsReply(),
		Vec:       vec,
	}
	if err := u.items.Put(iv); err != nil {
		return nil, err
	}
	return iv, nil
}

// stripeFor maps a (user, post) pair to a mutex stripe.
func (u *RealtimeUpdater) stripeFor(userID, postID uuid.UUID) int {
	h := fnv.New32a()
	h.Write(userID[:])
	h.Write(postID[:])
	return int(h.Sum32() % uint32(len(u.stripes)))
}

// PairBuffer accumulates training pairs for the next projection refit,
// bounded to the most recent capacity entries.
type PairBuffer struct {
	mu    sync.Mutex
	pairs []vector.TrainingPair
	cap   int
}

// NewPairBuffer creates a buffer holding at most capacity pairs.
func NewPairBuffer(capacity int) *PairBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &PairBuffer{cap: capacity}
}

// Add appends a pair, evicting the oldest when full.
func (b *PairBuffer) Add(p vector.TrainingPair) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pairs) >= b.cap {
		b.pairs = b.pairs[1:]
	}
	b.pairs = append(b.pairs, p)
}

// Drain returns the buffered pairs and resets the buffer.
func (b *PairBuffer) Drain() []vector.TrainingPair {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pairs
	b.pairs = nil
	return out
}

// Len returns the number of buffered pairs.
func (b *PairBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pairs)
}
