// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ranklab/internal/config"
	"github.com/tomtom215/ranklab/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func TestHealth(t *testing.T) {
	db := newTestDB(t)
	if err := db.Health(context.Background()); err != nil {
		t.Errorf("Health() error = %v", err)
	}
}

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	id, err := db.CreateUser(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("CreateUser() returned nil ID")
	}

	exists, err := db.UserExists(ctx, id)
	if err != nil {
		t.Fatalf("UserExists() error = %v", err)
	}
	if !exists {
		t.Error("created user should exist")
	}

	exists, err = db.UserExists(ctx, uuid.New())
	if err != nil {
		t.Fatalf("UserExists() error = %v", err)
	}
	if exists {
		t.Error("random ID should not exist")
	}

	if _, err := db.CreateUser(ctx, "bob"); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	n, err := db.UserCount(ctx)
	if err != nil {
		t.Fatalf("UserCount() error = %v", err)
	}
	if n != 2 {
		t.Errorf("UserCount() = %d, want 2", n)
	}
}

func TestCreatePostTopLevel(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	author, _ := db.CreateUser(ctx, "author")
	post, err := db.CreatePost(ctx, author, "hello world", nil)
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if post.ThreadID != post.ID {
		t.Error("top-level post should start its own thread")
	}
	if post.ParentID != nil {
		t.Error("top-level post should have no parent")
	}
	if post.Visibility != models.VisibilityVisible {
		t.Errorf("visibility = %q, want visible", post.Visibility)
	}

	got, err := db.Post(ctx, post.ID)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if got.ID != post.ID || got.AuthorID != author || got.Text != "hello world" {
		t.Errorf("Post() = %+v, want stored post", got)
	}
	if got.ThreadID != post.ID {
		t.Error("Post() lost thread ID")
	}
}

func TestCreatePostReply(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	author, _ := db.CreateUser(ctx, "author")
	root, err := db.CreatePost(ctx, author, "root post", nil)
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	reply, err := db.CreatePost(ctx, author, "first reply", &root.ID)
	if err != nil {
		t.Fatalf("CreatePost(reply) error = %v", err)
	}
	if reply.ThreadID != root.ID {
		t.Error("reply should inherit the root thread")
	}
	if reply.ParentID == nil || *reply.ParentID != root.ID {
		t.Error("reply should record its parent")
	}

	// A reply to the reply still belongs to the root thread.
	nested, err := db.CreatePost(ctx, author, "nested reply", &reply.ID)
	if err != nil {
		t.Fatalf("CreatePost(nested) error = %v", err)
	}
	if nested.ThreadID != root.ID {
		t.Error("nested reply should inherit the root thread transitively")
	}

	got, err := db.Post(ctx, root.ID)
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if got.ReplyCount != 1 {
		t.Errorf("root reply count = %d, want 1", got.ReplyCount)
	}

	mid, _ := db.Post(ctx, reply.ID)
	if mid.ReplyCount != 1 {
		t.Errorf("reply's reply count = %d, want 1", mid.ReplyCount)
	}
}

func TestCreatePostMissingParent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	author, _ := db.CreateUser(ctx, "author")
	missing := uuid.New()
	if _, err := db.CreatePost(ctx, author, "orphan", &missing); err == nil {
		t.Error("reply to a missing parent should fail")
	}
}

func TestPostNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Post(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Post() error = %v, want ErrNotFound", err)
	}
}

func TestPostsReturnsExistingSubset(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	author, _ := db.CreateUser(ctx, "author")
	a, _ := db.CreatePost(ctx, author, "post a", nil)
	b, _ := db.CreatePost(ctx, author, "post b", nil)
	missing := uuid.New()

	got, err := db.Posts(ctx, []uuid.UUID{a.ID, missing, b.ID})
	if err != nil {
		t.Fatalf("Posts() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Posts() returned %d posts, want 2", len(got))
	}
	if got[a.ID] == nil || got[b.ID] == nil {
		t.Error("Posts() missing a stored post")
	}
	if got[missing] != nil {
		t.Error("Posts() should not invent rows for unknown IDs")
	}

	empty, err := db.Posts(ctx, nil)
	if err != nil {
		t.Fatalf("Posts(nil) error = %v", err)
	}
	if len(empty) != 0 {
		t.Error("Posts(nil) should return an empty map")
	}
}

func TestAllPosts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	author, _ := db.CreateUser(ctx, "author")
	for _, text := range []string{"one", "two", "three"} {
		if _, err := db.CreatePost(ctx, author, text, nil); err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
	}

	posts, err := db.AllPosts(ctx)
	if err != nil {
		t.Fatalf("AllPosts() error = %v", err)
	}
	if len(posts) != 3 {
		t.Errorf("AllPosts() returned %d posts, want 3", len(posts))
	}

	n, err := db.PostCount(ctx)
	if err != nil {
		t.Fatalf("PostCount() error = %v", err)
	}
	if n != 3 {
		t.Errorf("PostCount() = %d, want 3", n)
	}
}

func TestRecentByAuthors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	followed, _ := db.CreateUser(ctx, "followed")
	stranger, _ := db.CreateUser(ctx, "stranger")

	old, _ := db.CreatePost(ctx, followed, "older post", nil)
	newer, _ := db.CreatePost(ctx, followed, "newer post", nil)
	if _, err := db.CreatePost(ctx, followed, "a reply", &old.ID); err != nil {
		t.Fatalf("CreatePost(reply) error = %v", err)
	}
	hidden, _ := db.CreatePost(ctx, followed, "hidden post", nil)
	if err := db.SetVisibility(ctx, hidden.ID, models.VisibilityDeleted); err != nil {
		t.Fatalf("SetVisibility() error = %v", err)
	}
	if _, err := db.CreatePost(ctx, stranger, "unrelated post", nil); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}

	got, err := db.RecentByAuthors(ctx, []uuid.UUID{followed}, 10)
	if err != nil {
		t.Fatalf("RecentByAuthors() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentByAuthors() returned %d posts, want 2", len(got))
	}
	// Most recent first; replies and hidden posts are excluded.
	if got[0].ID != newer.ID || got[1].ID != old.ID {
		t.Errorf("order = [%s, %s], want [%s, %s]",
			got[0].ID, got[1].ID, newer.ID, old.ID)
	}
	for _, p := range got {
		if p.ParentID != nil {
			t.Error("RecentByAuthors() should exclude replies")
		}
		if p.Visibility != models.VisibilityVisible {
			t.Error("RecentByAuthors() should exclude hidden posts")
		}
	}

	none, err := db.RecentByAuthors(ctx, nil, 10)
	if err != nil {
		t.Fatalf("RecentByAuthors(nil) error = %v", err)
	}
	if len(none) != 0 {
		t.Error("RecentByAuthors with no authors should return nothing")
	}
}

func TestRecentByAuthorsLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	author, _ := db.CreateUser(ctx, "prolific")
	for i := 0; i < 5; i++ {
		if _, err := db.CreatePost(ctx, author, "post", nil); err != nil {
			t.Fatalf("CreatePost() error = %v", err)
		}
	}

	got, err := db.RecentByAuthors(ctx, []uuid.UUID{author}, 3)
	if err != nil {
		t.Fatalf("RecentByAuthors() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("RecentByAuthors() returned %d posts, want limit 3", len(got))
	}
}

func TestSetVisibilityUnknownPost(t *testing.T) {
	db := newTestDB(t)

	err := db.SetVisibility(context.Background(), uuid.New(), models.VisibilityDeleted)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("SetVisibility() error = %v, want ErrNotFound", err)
	}
}

func TestFollowAndFollowing(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user, _ := db.CreateUser(ctx, "user")
	first, _ := db.CreateUser(ctx, "first")
	second, _ := db.CreateUser(ctx, "second")

	if err := db.Follow(ctx, user, first); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if err := db.Follow(ctx, user, second); err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	// Re-following must not duplicate the edge.
	if err := db.Follow(ctx, user, first); err != nil {
		t.Fatalf("repeated Follow() error = %v", err)
	}

	following, err := db.Following(ctx, user)
	if err != nil {
		t.Fatalf("Following() error = %v", err)
	}
	if len(following) != 2 {
		t.Fatalf("Following() returned %d edges, want 2", len(following))
	}

	other, err := db.Following(ctx, first)
	if err != nil {
		t.Fatalf("Following() error = %v", err)
	}
	if len(other) != 0 {
		t.Error("edges should not leak across users")
	}
}

func TestSocialGraph(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user, _ := db.CreateUser(ctx, "user")
	blockedAuthor, _ := db.CreateUser(ctx, "blocked")
	mutedAuthor, _ := db.CreateUser(ctx, "muted")

	if err := db.Block(ctx, user, blockedAuthor); err != nil {
		t.Fatalf("Block() error = %v", err)
	}
	if err := db.Mute(ctx, user, mutedAuthor); err != nil {
		t.Fatalf("Mute() error = %v", err)
	}
	if err := db.Block(ctx, user, blockedAuthor); err != nil {
		t.Fatalf("repeated Block() error = %v", err)
	}

	blocked, muted, err := db.SocialGraph(ctx, user)
	if err != nil {
		t.Fatalf("SocialGraph() error = %v", err)
	}
	if len(blocked) != 1 || blocked[0] != blockedAuthor {
		t.Errorf("blocked = %v, want [%s]", blocked, blockedAuthor)
	}
	if len(muted) != 1 || muted[0] != mutedAuthor {
		t.Errorf("muted = %v, want [%s]", muted, mutedAuthor)
	}
}

func TestAppendEventIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user, _ := db.CreateUser(ctx, "user")
	author, _ := db.CreateUser(ctx, "author")
	post, _ := db.CreatePost(ctx, author, "some post", nil)

	event := models.NewEngagementEvent(user, post.ID, models.ActionLike)
	if err := db.AppendEvent(ctx, event); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}
	// Bus redelivery carries the same event ID.
	if err := db.AppendEvent(ctx, event); err != nil {
		t.Fatalf("redelivered AppendEvent() error = %v", err)
	}

	n, err := db.EventCount(ctx)
	if err != nil {
		t.Fatalf("EventCount() error = %v", err)
	}
	if n != 1 {
		t.Errorf("EventCount() = %d, want 1 after duplicate delivery", n)
	}
}

func TestEngagedTexts(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user, _ := db.CreateUser(ctx, "user")
	author, _ := db.CreateUser(ctx, "author")
	first, _ := db.CreatePost(ctx, author, "first engaged", nil)
	second, _ := db.CreatePost(ctx, author, "second engaged", nil)

	early := models.NewEngagementEvent(user, first.ID, models.ActionLike)
	early.Timestamp = time.Now().UTC().Add(-time.Hour)
	if err := db.AppendEvent(ctx, early); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}
	late := models.NewEngagementEvent(user, second.ID, models.ActionView)
	if err := db.AppendEvent(ctx, late); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}

	texts, err := db.EngagedTexts(ctx, user, 10)
	if err != nil {
		t.Fatalf("EngagedTexts() error = %v", err)
	}
	if len(texts) != 2 {
		t.Fatalf("EngagedTexts() returned %d texts, want 2", len(texts))
	}
	if texts[0] != "second engaged" || texts[1] != "first engaged" {
		t.Errorf("texts = %v, want most recent engagement first", texts)
	}

	limited, err := db.EngagedTexts(ctx, user, 1)
	if err != nil {
		t.Fatalf("EngagedTexts() error = %v", err)
	}
	if len(limited) != 1 || limited[0] != "second engaged" {
		t.Errorf("limited texts = %v, want only the latest", limited)
	}
}

func TestScoringWeightsDefaults(t *testing.T) {
	db := newTestDB(t)

	weights, err := db.ScoringWeights(context.Background())
	if err != nil {
		t.Fatalf("ScoringWeights() error = %v", err)
	}
	defaults := models.DefaultScoringWeights()
	for _, action := range models.ActionTypes {
		if weights.Weight(action) != defaults.Weight(action) {
			t.Errorf("weight(%s) = %v, want default %v",
				action, weights.Weight(action), defaults.Weight(action))
		}
	}
}

func TestUpdateWeights(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	defaults := models.DefaultScoringWeights()
	update := models.ScoringWeights{
		models.ActionLike:  2.5,
		models.ActionReply: defaults.Weight(models.ActionReply), // unchanged
	}
	changes, err := db.UpdateWeights(ctx, update)
	if err != nil {
		t.Fatalf("UpdateWeights() error = %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("UpdateWeights() recorded %d changes, want 1", len(changes))
	}
	if changes[0].Action != models.ActionLike {
		t.Errorf("changed action = %s, want like", changes[0].Action)
	}
	if changes[0].PriorWeight != defaults.Weight(models.ActionLike) {
		t.Errorf("prior weight = %v, want default", changes[0].PriorWeight)
	}
	if changes[0].NewWeight != 2.5 {
		t.Errorf("new weight = %v, want 2.5", changes[0].NewWeight)
	}

	weights, err := db.ScoringWeights(ctx)
	if err != nil {
		t.Fatalf("ScoringWeights() error = %v", err)
	}
	if weights.Weight(models.ActionLike) != 2.5 {
		t.Errorf("stored like weight = %v, want 2.5", weights.Weight(models.ActionLike))
	}
	if weights.Weight(models.ActionReply) != defaults.Weight(models.ActionReply) {
		t.Error("unchanged action should keep its default weight")
	}
}

func TestUpdateWeightsNoEffectiveChange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	defaults := models.DefaultScoringWeights()
	changes, err := db.UpdateWeights(ctx, models.ScoringWeights{
		models.ActionLike: defaults.Weight(models.ActionLike),
	})
	if err != nil {
		t.Fatalf("UpdateWeights() error = %v", err)
	}
	if len(changes) != 0 {
		t.Errorf("no-op update recorded %d changes, want 0", len(changes))
	}

	audit, err := db.WeightAudit(ctx, 10)
	if err != nil {
		t.Fatalf("WeightAudit() error = %v", err)
	}
	if len(audit) != 0 {
		t.Error("no-op update should leave no audit rows")
	}
}

func TestWeightAuditSharesChangeGroup(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	changes, err := db.UpdateWeights(ctx, models.ScoringWeights{
		models.ActionLike:          5.0,
		models.ActionNotInterested: -100.0,
	})
	if err != nil {
		t.Fatalf("UpdateWeights() error = %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("UpdateWeights() recorded %d changes, want 2", len(changes))
	}
	if changes[0].ChangeGroup != changes[1].ChangeGroup {
		t.Error("changes in one update should share a change group")
	}

	audit, err := db.WeightAudit(ctx, 10)
	if err != nil {
		t.Fatalf("WeightAudit() error = %v", err)
	}
	if len(audit) != 2 {
		t.Fatalf("WeightAudit() returned %d rows, want 2", len(audit))
	}
	if audit[0].ChangeGroup != changes[0].ChangeGroup {
		t.Error("audit rows should carry the update's change group")
	}

	limited, err := db.WeightAudit(ctx, 1)
	if err != nil {
		t.Fatalf("WeightAudit() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("WeightAudit(1) returned %d rows, want 1", len(limited))
	}
}

func TestSaveConsistencyCheck(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	check := &ConsistencyCheck{
		UserID:        uuid.New(),
		PostID:        uuid.New(),
		MaxDifference: 1e-12,
		Variance:      0,
		Epsilon:       1e-9,
		Consistent:    true,
	}
	if err := db.SaveConsistencyCheck(ctx, check); err != nil {
		t.Fatalf("SaveConsistencyCheck() error = %v", err)
	}
	if check.ID == uuid.Nil {
		t.Error("SaveConsistencyCheck should assign an ID")
	}
	if check.CheckedAt.IsZero() {
		t.Error("SaveConsistencyCheck should stamp the check time")
	}
}
