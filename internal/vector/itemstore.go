// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package vector

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrVectorNotFound is returned when a vector does not exist in a store.
var ErrVectorNotFound = errors.New("vector not found")

// Key prefixes for BadgerDB storage.
const (
	itemVecKeyPrefix = "itemvec:"
	userVecKeyPrefix = "uservec:"
)

// Provenance values for item vectors.
const (
	ProvenancePretrained = "pretrained"
	ProvenanceAdapted    = "adapted"
)

// ItemVector is the stored embedding for one post, together with the
// provenance flag and the post attributes retrieval needs without a
// relational lookup (author for self-exclusion, creation time for
// tie-breaking).
type ItemVector struct {
	// PostID identifies the post this vector belongs to.
	PostID uuid.UUID `json:"post_id"`

	// AuthorID is the post's author, used to exclude a user's own posts
	// from retrieval.
	AuthorID uuid.UUID `json:"author_id"`

	// CreatedAt is the post creation time, used for similarity tie-breaks.
	CreatedAt time.Time `json:"created_at"`

	// Reply marks vectors of reply posts. Replies keep vectors for learning
	// but are excluded from retrieval; they reach feeds only through their
	// conversation thread.
	Reply bool `json:"reply,omitempty"`

	// Vec is the unit-normalized embedding. Treated as immutable once stored;
	// mutations install a fresh slice so concurrent readers see a consistent
	// (possibly stale) vector, never a torn one.
	Vec []float64 `json:"vec"`

	// Adapted is true once online learning has mutated the vector.
	// False means the vector is pure frozen-encoder output.
	Adapted bool `json:"adapted"`

	// UpdatedAt is the last mutation time.
	UpdatedAt time.Time `json:"updated_at"`
}

// Provenance returns the provenance flag as a string.
func (v *ItemVector) Provenance() string {
	if v.Adapted {
		return ProvenanceAdapted
	}
	return ProvenancePretrained
}

// ItemStore holds one vector per post: an in-memory map as source of truth
// with optional BadgerDB persistence underneath.
//
// The read path (two-tower retrieval) and the write path (online learning)
// run concurrently; readers tolerate seeing a vector update mid-flight, so
// reads take the lock only long enough to copy map references.
type ItemStore struct {
	mu   sync.RWMutex
	vecs map[uuid.UUID]*ItemVector

	db *badger.DB // nil = memory only
}

// NewItemStore creates an item vector store. If db is non-nil, previously
// persisted vectors are loaded into memory.
func NewItemStore(db *badger.DB) (*ItemStore, error) {
	s := &ItemStore{
		vecs: make(map[uuid.UUID]*ItemVector),
		db:   db,
	}
	if db != nil {
		if err := s.loadAll(); err != nil {
			return nil, fmt.Errorf("load item vectors: %w", err)
		}
	}
	return s, nil
}

// Get returns the vector for a post, or ErrVectorNotFound.
func (s *ItemStore) Get(postID uuid.UUID) (*ItemVector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vecs[postID]
	if !ok {
		return nil, ErrVectorNotFound
	}
	return v, nil
}

// Has reports whether a vector exists for the post.
func (s *ItemStore) Has(postID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.vecs[postID]
	return ok
}

// Put stores a vector, normalizing it first. Overwrites any existing entry.
func (s *ItemStore) Put(v *ItemVector) error {
	v.Vec = Normalize(Clone(v.Vec))
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.vecs[v.PostID] = v
	s.mu.Unlock()

	return s.persist(v)
}

// Mutate applies fn to a copy of the stored vector, re-normalizes, marks it
// adapted, and installs the result. Returns ErrVectorNotFound if absent.
// The store-level lock serializes concurrent mutations of the same post.
func (s *ItemStore) Mutate(postID uuid.UUID, fn func(vec []float64) []float64) error {
	s.mu.Lock()
	cur, ok := s.vecs[postID]
	if !ok {
		s.mu.Unlock()
		return ErrVectorNotFound
	}

	next := &ItemVector{
		PostID:    postID,
		AuthorID:  cur.AuthorID,
		CreatedAt: cur.CreatedAt,
		Reply:     cur.Reply,
		Vec:       Normalize(fn(Clone(cur.Vec))),
		Adapted:   true,
		UpdatedAt: time.Now().UTC(),
	}
	s.vecs[postID] = next
	s.mu.Unlock()

	return s.persist(next)
}

// ReplaceAll atomically swaps the whole vector space. Used by the batch
// learning tier so ranking never sees a half-updated space.
func (s *ItemStore) ReplaceAll(vecs map[uuid.UUID]*ItemVector) error {
	now := time.Now().UTC()
	for _, v := range vecs {
		v.Vec = Normalize(Clone(v.Vec))
		v.UpdatedAt = now
	}

	s.mu.Lock()
	s.vecs = vecs
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, v := range vecs {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal item vector: %w", err)
		}
		if err := wb.Set([]byte(itemVecKeyPrefix+v.PostID.String()), data); err != nil {
			return fmt.Errorf("batch set: %w", err)
		}
	}
	return wb.Flush()
}

// Snapshot returns the current set of vectors. The returned slice is owned by
// the caller; the vectors themselves are shared immutable values.
func (s *ItemStore) Snapshot() []*ItemVector {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ItemVector, 0, len(s.vecs))
	for _, v := range s.vecs {
		out = append(out, v)
	}
	return out
}

// Count returns the number of stored vectors.
func (s *ItemStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vecs)
}

// persist writes one vector to BadgerDB, if persistence is enabled.
func (s *ItemStore) persist(v *ItemVector) error {
	if s.db == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal item vector: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(itemVecKeyPrefix+v.PostID.String()), data)
	})
}

// loadAll reads every persisted item vector into memory.
func (s *ItemStore) loadAll() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(itemVecKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var v ItemVector
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				return err
			}
			s.vecs[v.PostID] = &v
		}
		return nil
	})
}
