// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package ranking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ranklab/internal/models"
	"github.com/tomtom215/ranklab/internal/vector"
)

func newTestScorer(t *testing.T) (*EmbeddingScorer, *vector.ItemStore, *vector.HashingEncoder) {
	t.Helper()
	items, err := vector.NewItemStore(nil)
	if err != nil {
		t.Fatalf("NewItemStore() error = %v", err)
	}
	enc := vector.NewHashingEncoder(32, 42)
	return NewEmbeddingScorer(items, enc), items, enc
}

func scoringUser(vec []float64) *UserContext {
	return &UserContext{
		UserID: uuid.New(),
		Vector: &vector.UserVector{UserID: uuid.New(), Vec: vec},
	}
}

func TestScorerProbabilityRange(t *testing.T) {
	scorer, _, enc := newTestScorer(t)
	ctx := context.Background()

	userVec, _ := enc.Encode(ctx, "distributed databases replication")
	user := scoringUser(userVec)

	post := visiblePost(uuid.New(), time.Now().Add(-2*time.Hour))
	post.Text = "distributed databases and replication strategies"
	post.LikeCount = 40

	predictions, err := scorer.Score(ctx, user, candidateFor(post))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	if len(predictions) != len(models.ActionTypes) {
		t.Errorf("prediction count = %d, want %d", len(predictions), len(models.ActionTypes))
	}
	for _, action := range models.ActionTypes {
		p, ok := predictions[action]
		if !ok {
			t.Errorf("missing prediction for %q", action)
			continue
		}
		if p < 0 || p > 1 {
			t.Errorf("prediction for %q out of range: %v", action, p)
		}
	}
}

func TestScorerUsesStoredVector(t *testing.T) {
	scorer, items, enc := newTestScorer(t)
	ctx := context.Background()

	post := visiblePost(uuid.New(), time.Now())
	post.Text = "cooking pasta"

	// Store a vector that disagrees with the post text.
	storedVec, _ := enc.Encode(ctx, "quantum error correction")
	if err := items.Put(&vector.ItemVector{PostID: post.ID, Vec: storedVec}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	userVec, _ := enc.Encode(ctx, "quantum error correction")
	user := scoringUser(userVec)

	withStored, err := scorer.Score(ctx, user, candidateFor(post))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	// Same post without a stored vector falls back to encoding its text.
	other := visiblePost(uuid.New(), post.CreatedAt)
	other.Text = post.Text
	withEncoded, err := scorer.Score(ctx, user, candidateFor(other))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	if withStored[models.ActionLike] <= withEncoded[models.ActionLike] {
		t.Error("stored vector matching the user should outscore the text fallback")
	}
}

func TestScorerSimilarityDrivesLike(t *testing.T) {
	scorer, _, enc := newTestScorer(t)
	ctx := context.Background()

	userVec, _ := enc.Encode(ctx, "machine learning embeddings retrieval")
	user := scoringUser(userVec)
	now := time.Now()

	match := visiblePost(uuid.New(), now)
	match.Text = "machine learning embeddings retrieval"
	unrelated := visiblePost(uuid.New(), now)
	unrelated.Text = "medieval castle architecture"

	pMatch, err := scorer.Score(ctx, user, candidateFor(match))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	pOther, err := scorer.Score(ctx, user, candidateFor(unrelated))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}

	if pMatch[models.ActionLike] <= pOther[models.ActionLike] {
		t.Error("similar content should predict higher like probability")
	}
	if pMatch[models.ActionNotInterested] >= pOther[models.ActionNotInterested] {
		t.Error("similar content should predict lower not-interested probability")
	}
}

// Scoring the same candidate must not depend on call order, repetition, or
// anything outside the candidate itself.
func TestScorerRepeatable(t *testing.T) {
	scorer, _, enc := newTestScorer(t)
	ctx := context.Background()
	scorer.now = func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }

	userVec, _ := enc.Encode(ctx, "home espresso machines")
	user := scoringUser(userVec)
	post := visiblePost(uuid.New(), time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC))
	post.Text = "dialing in espresso grind size"

	first, err := scorer.Score(ctx, user, candidateFor(post))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		// Interleave scoring of other random candidates.
		noise := visiblePost(uuid.New(), time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
		noise.Text = "unrelated noise content"
		if _, err := scorer.Score(ctx, user, candidateFor(noise)); err != nil {
			t.Fatalf("Score() error = %v", err)
		}

		again, err := scorer.Score(ctx, user, candidateFor(post))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		for _, action := range models.ActionTypes {
			if again[action] != first[action] {
				t.Fatalf("prediction for %q drifted: %v -> %v", action, first[action], again[action])
			}
		}
	}
}
