// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package vector

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// Encoder maps text to a fixed-length unit vector. Implementations must be
// pure: the same text always encodes to the same vector, and encoding holds
// no mutable state beyond frozen parameters.
type Encoder interface {
	// Encode returns the embedding for a single text.
	Encode(ctx context.Context, text string) ([]float64, error)

	// EncodeHistory returns one embedding summarizing a list of texts,
	// most-recent-first. Used for the user tower.
	EncodeHistory(ctx context.Context, texts []string) ([]float64, error)

	// Dimension returns the output vector dimension.
	Dimension() int
}

// HashingEncoder is a deterministic feature-hashing text encoder. Tokens and
// token bigrams are hashed into D signed buckets and the result is
// L2-normalized. It stands in for a sentence-transformer behind the same
// interface: any encoder producing fixed-length unit vectors is substitutable.
type HashingEncoder struct {
	dim  int
	seed uint64
}

// NewHashingEncoder creates an encoder with the given output dimension.
// The seed perturbs the hash so distinct deployments can decorrelate spaces.
func NewHashingEncoder(dim int, seed int64) *HashingEncoder {
	if dim <= 0 {
		dim = 128
	}
	return &HashingEncoder{dim: dim, seed: uint64(seed)}
}

// Dimension returns the output vector dimension.
func (e *HashingEncoder) Dimension() int {
	return e.dim
}

// Encode hashes unigram and bigram features of text into the vector space.
// Empty or whitespace-only text yields the zero vector.
func (e *HashingEncoder) Encode(_ context.Context, text string) ([]float64, error) {
	v := make([]float64, e.dim)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return v, nil
	}

	for i, tok := range tokens {
		e.addFeature(v, tok, 1.0)
		if i+1 < len(tokens) {
			// Bigrams carry word-order signal the bag of unigrams loses.
			e.addFeature(v, tok+" "+tokens[i+1], 0.5)
		}
	}

	return Normalize(v), nil
}

// EncodeHistory encodes the concatenation of texts, weighting earlier
// (more recent) entries higher with a harmonic decay.
func (e *HashingEncoder) EncodeHistory(ctx context.Context, texts []string) ([]float64, error) {
	v := make([]float64, e.dim)
	if len(texts) == 0 {
		return v, nil
	}

	for i, text := range texts {
		tv, err := e.Encode(ctx, text)
		if err != nil {
			return nil, err
		}
		w := 1.0 / float64(i+1)
		for j := range v {
			v[j] += w * tv[j]
		}
	}

	return Normalize(v), nil
}

// addFeature hashes one feature into a signed bucket.
func (e *HashingEncoder) addFeature(v []float64, feature string, weight float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64() ^ e.seed

	idx := int(sum % uint64(e.dim)) //nolint:gosec // dim is small and positive
	sign := 1.0
	if sum&(1<<63) != 0 {
		sign = -1.0
	}
	v[idx] += sign * weight
}

// tokenize lowercases and splits on non-letter/digit runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
