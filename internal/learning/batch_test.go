// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package learning

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/ranklab/internal/models"
	"github.com/tomtom215/ranklab/internal/vector"
)

// fakeCorpus is an in-memory CorpusProvider.
type fakeCorpus struct {
	posts []*models.Post
}

func (f *fakeCorpus) add(text string, reply bool) *models.Post {
	id := uuid.New()
	p := &models.Post{
		ID:        id,
		AuthorID:  uuid.New(),
		Text:      text,
		ThreadID:  id,
		CreatedAt: time.Now().UTC(),
	}
	if reply {
		parent := uuid.New()
		p.ParentID = &parent
		p.ThreadID = parent
	}
	f.posts = append(f.posts, p)
	return p
}

func (f *fakeCorpus) AllPosts(_ context.Context) ([]*models.Post, error) {
	return f.posts, nil
}

func newTestRebuilder(t *testing.T) (*Rebuilder, *fakeCorpus, *vector.ItemStore, *vector.ProjectedEncoder, *PairBuffer) {
	t.Helper()
	items, err := vector.NewItemStore(nil)
	if err != nil {
		t.Fatalf("NewItemStore() error = %v", err)
	}
	enc := vector.NewProjectedEncoder(vector.NewHashingEncoder(16, 42))
	corpus := &fakeCorpus{}
	pairs := NewPairBuffer(100)

	r := NewRebuilder(enc, items, corpus, pairs, testLearningConfig())
	return r, corpus, items, enc, pairs
}

func TestRebuilderRunRederivesCorpus(t *testing.T) {
	r, corpus, items, _, _ := newTestRebuilder(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		corpus.add(fmt.Sprintf("corpus post %d", i), false)
	}
	reply := corpus.add("a reply within a thread", true)

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if items.Count() != 6 {
		t.Errorf("Count() = %d, want 6", items.Count())
	}
	for _, p := range corpus.posts {
		iv, err := items.Get(p.ID)
		if err != nil {
			t.Fatalf("vector missing for %s: %v", p.ID, err)
		}
		if iv.Adapted {
			t.Error("freshly derived vector should carry pretrained provenance")
		}
		if !vector.IsNormalized(iv.Vec, 1e-9) {
			t.Error("derived vector not normalized")
		}
		if iv.AuthorID != p.AuthorID {
			t.Error("derived vector lost author attribution")
		}
	}

	iv, _ := items.Get(reply.ID)
	if !iv.Reply {
		t.Error("reply vector should keep the reply flag")
	}
}

func TestRebuilderRunSupersedesRealtimeAdaptations(t *testing.T) {
	r, corpus, items, _, _ := newTestRebuilder(t)
	ctx := context.Background()

	p := corpus.add("a post that got adapted online", false)
	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	err := items.Mutate(p.ID, func(vec []float64) []float64 {
		return vector.Nudge(vec, vector.Normalize([]float64{1, 1}), 0.5, 1.0)
	})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	adapted, _ := items.Get(p.ID)
	if !adapted.Adapted {
		t.Fatal("precondition: vector should be adapted")
	}

	if err := r.Run(ctx); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	fresh, _ := items.Get(p.ID)
	if fresh.Adapted {
		t.Error("batch rederivation should reset provenance to pretrained")
	}
}

func TestRebuilderRefitsProjectionFromPairs(t *testing.T) {
	r, corpus, _, enc, pairs := newTestRebuilder(t)
	ctx := context.Background()

	corpus.add("some corpus content", false)
	before := enc.Projection()

	base, _ := vector.NewHashingEncoder(16, 42).Encode(ctx, "some corpus content")
	user := vector.Normalize([]float64{1, 0.5, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	for i := 0; i < 20; i++ {
		pairs.Add(vector.TrainingPair{User: user, Base: base, Label: true})
	}

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if enc.Projection() == before {
		t.Error("Run with buffered pairs should install a refit projection")
	}
	if pairs.Len() != 0 {
		t.Error("Run should drain the pair buffer")
	}
}

func TestRebuilderRunWithoutPairsKeepsProjection(t *testing.T) {
	r, corpus, _, enc, _ := newTestRebuilder(t)
	corpus.add("content", false)
	before := enc.Projection()

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if enc.Projection() != before {
		t.Error("Run without pairs should leave the projection untouched")
	}
}
