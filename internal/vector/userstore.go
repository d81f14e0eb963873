// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package vector

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// UserVector is the stored embedding for one user, plus the monotonic
// engagement counter that drives adaptive learning-rate decay.
type UserVector struct {
	// UserID identifies the user this vector belongs to.
	UserID uuid.UUID `json:"user_id"`

	// Vec is the unit-normalized embedding (or zero for brand-new users).
	// Mutations install a fresh slice; stored slices are never written in
	// place.
	Vec []float64 `json:"vec"`

	// EngagementCount increments on every qualifying engagement event,
	// regardless of sign, and never resets.
	EngagementCount int64 `json:"engagement_count"`

	// UpdatedAt is the last mutation time.
	UpdatedAt time.Time `json:"updated_at"`
}

// ColdStart reports whether the user is below the engagement threshold and
// should be excluded from retrieval-quality expectations.
func (v *UserVector) ColdStart(threshold int) bool {
	return v.EngagementCount < int64(threshold)
}

// UserStore holds one vector per user with the same memory-first,
// Badger-persisted layout as ItemStore.
type UserStore struct {
	mu   sync.RWMutex
	vecs map[uuid.UUID]*UserVector
	dim  int

	db *badger.DB // nil = memory only
}

// NewUserStore creates a user vector store for the given dimension.
func NewUserStore(db *badger.DB, dim int) (*UserStore, error) {
	s := &UserStore{
		vecs: make(map[uuid.UUID]*UserVector),
		dim:  dim,
		db:   db,
	}
	if db != nil {
		if err := s.loadAll(); err != nil {
			return nil, fmt.Errorf("load user vectors: %w", err)
		}
	}
	return s, nil
}

// Get returns the vector for a user, or ErrVectorNotFound.
func (s *UserStore) Get(userID uuid.UUID) (*UserVector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vecs[userID]
	if !ok {
		return nil, ErrVectorNotFound
	}
	return v, nil
}

// GetOrCreate returns the user's vector, lazily creating a zero-vector entry
// on first request. Creation is not persisted until the first mutation; a
// user who never engages costs nothing on disk.
func (s *UserStore) GetOrCreate(userID uuid.UUID) *UserVector {
	s.mu.RLock()
	v, ok := s.vecs[userID]
	s.mu.RUnlock()
	if ok {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok = s.vecs[userID]; ok {
		return v
	}

	v = &UserVector{
		UserID:    userID,
		Vec:       Zero(s.dim),
		UpdatedAt: time.Now().UTC(),
	}
	s.vecs[userID] = v
	return v
}

// Update applies the online blend update for one engagement: the vector moves
// toward (or away from) the item vector and the engagement counter increments.
// The blend factor is alpha = min(baseAlpha, 1/(count+1)).
func (s *UserStore) Update(userID uuid.UUID, itemVec []float64, signal, baseAlpha float64) (*UserVector, error) {
	s.mu.Lock()
	cur, ok := s.vecs[userID]
	if !ok {
		cur = &UserVector{UserID: userID, Vec: Zero(s.dim)}
	}

	alpha := 1.0 / float64(cur.EngagementCount+1)
	if alpha > baseAlpha {
		alpha = baseAlpha
	}

	next := &UserVector{
		UserID:          userID,
		Vec:             Blend(cur.Vec, itemVec, alpha, signal),
		EngagementCount: cur.EngagementCount + 1,
		UpdatedAt:       time.Now().UTC(),
	}
	s.vecs[userID] = next
	s.mu.Unlock()

	return next, s.persist(next)
}

// Put stores a vector, normalizing it first.
func (s *UserStore) Put(v *UserVector) error {
	v.Vec = Normalize(Clone(v.Vec))
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	s.vecs[v.UserID] = v
	s.mu.Unlock()

	return s.persist(v)
}

// Count returns the number of stored vectors.
func (s *UserStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vecs)
}

// persist writes one vector to BadgerDB, if persistence is enabled.
func (s *UserStore) persist(v *UserVector) error {
	if s.db == nil {
		return nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal user vector: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(userVecKeyPrefix+v.UserID.String()), data)
	})
}

// loadAll reads every persisted user vector into memory.
func (s *UserStore) loadAll() error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(userVecKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var v UserVector
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				return err
			}
			s.vecs[v.UserID] = &v
		}
		return nil
	})
}
