// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package learning

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ranklab/internal/config"
	"github.com/tomtom215/ranklab/internal/models"
	"github.com/tomtom215/ranklab/internal/vector"
)

// fakePosts is an in-memory PostProvider.
type fakePosts struct {
	posts map[uuid.UUID]*models.Post
}

func newFakePosts() *fakePosts {
	return &fakePosts{posts: make(map[uuid.UUID]*models.Post)}
}

func (f *fakePosts) add(text string) *models.Post {
	id := uuid.New()
	p := &models.Post{
		ID:        id,
		AuthorID:  uuid.New(),
		Text:      text,
		ThreadID:  id,
		CreatedAt: time.Now().UTC(),
	}
	f.posts[id] = p
	return p
}

func (f *fakePosts) Post(_ context.Context, postID uuid.UUID) (*models.Post, error) {
	p, ok := f.posts[postID]
	if !ok {
		return nil, fmt.Errorf("post %s not found", postID)
	}
	return p, nil
}

func testLearningConfig() config.LearningConfig {
	return config.LearningConfig{
		ItemRate:         0.01,
		UserBaseAlpha:    0.1,
		BatchEvery:       1000,
		BatchMaxDuration: time.Minute,
		PairStripes:      16,
	}
}

func newTestUpdater(t *testing.T) (*RealtimeUpdater, *fakePosts, *vector.UserStore, *vector.ItemStore, *PairBuffer) {
	t.Helper()
	users, err := vector.NewUserStore(nil, 32)
	if err != nil {
		t.Fatalf("NewUserStore() error = %v", err)
	}
	items, err := vector.NewItemStore(nil)
	if err != nil {
		t.Fatalf("NewItemStore() error = %v", err)
	}
	posts := newFakePosts()
	pairs := NewPairBuffer(100)
	enc := vector.NewHashingEncoder(32, 42)

	updater := NewRealtimeUpdater(users, items, enc, posts, pairs, testLearningConfig())
	return updater, posts, users, items, pairs
}

func TestApplyPositiveEngagement(t *testing.T) {
	updater, posts, users, items, pairs := newTestUpdater(t)
	ctx := context.Background()

	post := posts.add("concurrency patterns in go")
	userID := uuid.New()

	event := models.NewEngagementEvent(userID, post.ID, models.ActionLike)
	if err := updater.Apply(ctx, event); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	uv, err := users.Get(userID)
	if err != nil {
		t.Fatalf("user vector missing after engagement: %v", err)
	}
	if uv.EngagementCount != 1 {
		t.Errorf("EngagementCount = %d, want 1", uv.EngagementCount)
	}
	if !vector.IsNormalized(uv.Vec, 1e-9) {
		t.Error("user vector not unit-normalized after update")
	}

	iv, err := items.Get(post.ID)
	if err != nil {
		t.Fatalf("item vector missing after engagement: %v", err)
	}
	if !iv.Adapted {
		t.Error("item vector should carry adapted provenance after engagement")
	}
	if !vector.IsNormalized(iv.Vec, 1e-9) {
		t.Error("item vector not unit-normalized after update")
	}
	if iv.AuthorID != post.AuthorID {
		t.Error("item vector lost author attribution")
	}

	if pairs.Len() != 1 {
		t.Errorf("pair buffer length = %d, want 1", pairs.Len())
	}
}

func TestApplyViewMovesNothing(t *testing.T) {
	updater, posts, users, items, pairs := newTestUpdater(t)
	ctx := context.Background()

	post := posts.add("a post nobody engages with")
	userID := uuid.New()

	event := models.NewEngagementEvent(userID, post.ID, models.ActionView)
	if err := updater.Apply(ctx, event); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if _, err := users.Get(userID); !errors.Is(err, vector.ErrVectorNotFound) {
		t.Error("view should not create a user vector")
	}
	if items.Has(post.ID) {
		t.Error("view should not create an item vector")
	}
	if pairs.Len() != 0 {
		t.Error("view should not accumulate a training pair")
	}
}

func TestApplyNegativeEngagement(t *testing.T) {
	updater, posts, users, _, _ := newTestUpdater(t)
	ctx := context.Background()

	liked := posts.add("deep dive into raft consensus")
	disliked := posts.add("engagement bait hot take")
	userID := uuid.New()

	if err := updater.Apply(ctx, models.NewEngagementEvent(userID, liked.ID, models.ActionLike)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	before, _ := users.Get(userID)
	dislikedVec, _ := vector.NewHashingEncoder(32, 42).Encode(ctx, disliked.Text)
	simBefore := vector.Dot(before.Vec, dislikedVec)

	if err := updater.Apply(ctx, models.NewEngagementEvent(userID, disliked.ID, models.ActionNotInterested)); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	after, _ := users.Get(userID)
	simAfter := vector.Dot(after.Vec, dislikedVec)

	if simAfter >= simBefore {
		t.Errorf("negative action should push the user away: %v -> %v", simBefore, simAfter)
	}
	if !vector.IsNormalized(after.Vec, 1e-9) {
		t.Error("user vector lost unit norm after negative update")
	}
}

func TestApplyRejectsInvalidEvent(t *testing.T) {
	updater, _, _, _, _ := newTestUpdater(t)

	event := models.NewEngagementEvent(uuid.New(), uuid.New(), "bookmark")
	err := updater.Apply(context.Background(), event)

	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Apply() error = %v, want *ValidationError", err)
	}
}

func TestApplyReplyPostKeepsReplyFlag(t *testing.T) {
	updater, posts, _, items, _ := newTestUpdater(t)
	ctx := context.Background()

	parent := posts.add("original post")
	reply := posts.add("a reply to the original")
	reply.ParentID = &parent.ID
	reply.ThreadID = parent.ID

	event := models.NewEngagementEvent(uuid.New(), reply.ID, models.ActionReply)
	if err := updater.Apply(ctx, event); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	iv, err := items.Get(reply.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !iv.Reply {
		t.Error("engaged reply should keep its reply flag so retrieval skips it")
	}
}

func TestNormalizationSurvivesManyUpdates(t *testing.T) {
	updater, posts, users, items, _ := newTestUpdater(t)
	ctx := context.Background()

	userID := uuid.New()
	actions := []models.ActionType{
		models.ActionLike, models.ActionReply, models.ActionNotInterested,
		models.ActionRepost, models.ActionMuteAuthor, models.ActionLike,
	}

	var postIDs []uuid.UUID
	for i := 0; i < 30; i++ {
		p := posts.add(fmt.Sprintf("post number %d about topic %d", i, i%5))
		postIDs = append(postIDs, p.ID)
		event := models.NewEngagementEvent(userID, p.ID, actions[i%len(actions)])
		if err := updater.Apply(ctx, event); err != nil {
			t.Fatalf("Apply() error at %d = %v", i, err)
		}
	}

	uv, err := users.Get(userID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !vector.IsNormalized(uv.Vec, 1e-9) {
		t.Errorf("user vector norm drifted after 30 updates: %v", vector.Norm(uv.Vec))
	}
	if uv.EngagementCount != 30 {
		t.Errorf("EngagementCount = %d, want 30", uv.EngagementCount)
	}
	for _, id := range postIDs {
		iv, err := items.Get(id)
		if err != nil {
			t.Fatalf("item vector missing: %v", err)
		}
		if !vector.IsNormalized(iv.Vec, 1e-9) {
			t.Errorf("item vector norm drifted: %v", vector.Norm(iv.Vec))
		}
	}
}

func TestPairBufferEviction(t *testing.T) {
	b := NewPairBuffer(3)
	for i := 0; i < 5; i++ {
		b.Add(vector.TrainingPair{User: []float64{float64(i)}, Label: true})
	}
	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}

	drained := b.Drain()
	if len(drained) != 3 {
		t.Fatalf("Drain() returned %d pairs, want 3", len(drained))
	}
	// Oldest entries evicted: 0 and 1 are gone.
	if drained[0].User[0] != 2 || drained[2].User[0] != 4 {
		t.Errorf("unexpected retained pairs: %v", drained)
	}
	if b.Len() != 0 {
		t.Error("Drain should reset the buffer")
	}
}
