// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package vector

import (
	"context"
	"testing"
)

func TestHashingEncoderDeterminism(t *testing.T) {
	enc := NewHashingEncoder(64, 42)
	ctx := context.Background()

	a, err := enc.Encode(ctx, "the quick brown fox")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	b, err := enc.Encode(ctx, "the quick brown fox")
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same text encoded differently at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHashingEncoderOutput(t *testing.T) {
	enc := NewHashingEncoder(64, 42)
	ctx := context.Background()

	tests := []struct {
		name     string
		text     string
		wantZero bool
	}{
		{"normal text", "hello world", false},
		{"empty text", "", true},
		{"whitespace only", "   \t\n  ", true},
		{"punctuation only", "!!! ... ???", true},
		{"single token", "golang", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := enc.Encode(ctx, tt.text)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if len(v) != 64 {
				t.Errorf("dimension = %d, want 64", len(v))
			}
			if IsZero(v) != tt.wantZero {
				t.Errorf("IsZero = %v, want %v", IsZero(v), tt.wantZero)
			}
			if !tt.wantZero && !IsNormalized(v, 1e-9) {
				t.Errorf("encoded vector not normalized: norm = %v", Norm(v))
			}
		})
	}
}

func TestHashingEncoderSeedsDecorrelate(t *testing.T) {
	ctx := context.Background()
	a, _ := NewHashingEncoder(64, 1).Encode(ctx, "identical input text")
	b, _ := NewHashingEncoder(64, 2).Encode(ctx, "identical input text")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical embeddings")
	}
}

func TestHashingEncoderDistinguishesTexts(t *testing.T) {
	enc := NewHashingEncoder(128, 42)
	ctx := context.Background()

	a, _ := enc.Encode(ctx, "kubernetes cluster networking deep dive")
	b, _ := enc.Encode(ctx, "sourdough bread baking for beginners")

	if sim := Dot(a, b); sim > 0.9 {
		t.Errorf("unrelated texts too similar: %v", sim)
	}
}

func TestEncodeHistory(t *testing.T) {
	enc := NewHashingEncoder(64, 42)
	ctx := context.Background()

	t.Run("empty history is zero", func(t *testing.T) {
		v, err := enc.EncodeHistory(ctx, nil)
		if err != nil {
			t.Fatalf("EncodeHistory() error = %v", err)
		}
		if !IsZero(v) {
			t.Error("empty history should encode to zero vector")
		}
	})

	t.Run("normalized output", func(t *testing.T) {
		v, err := enc.EncodeHistory(ctx, []string{"first post", "second post", "third post"})
		if err != nil {
			t.Fatalf("EncodeHistory() error = %v", err)
		}
		if !IsNormalized(v, 1e-9) {
			t.Errorf("history vector not normalized: norm = %v", Norm(v))
		}
	})

	t.Run("recent entries weigh more", func(t *testing.T) {
		recent, _ := enc.Encode(ctx, "distributed systems consensus")
		old, _ := enc.Encode(ctx, "gardening tips tomatoes")

		v, err := enc.EncodeHistory(ctx, []string{
			"distributed systems consensus",
			"gardening tips tomatoes",
		})
		if err != nil {
			t.Fatalf("EncodeHistory() error = %v", err)
		}
		if Dot(v, recent) <= Dot(v, old) {
			t.Error("most recent text should dominate the history vector")
		}
	})
}
