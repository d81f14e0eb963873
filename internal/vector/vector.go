// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

// Package vector implements the shared user/item embedding space: dense
// vector math, the text encoder, the learned projection, and the persistent
// vector stores.
//
// All vectors live in one D-dimensional space and are unit-normalized after
// every mutation, so dot product equals cosine similarity.
package vector

import "math"

// normEpsilon is the norm below which a vector is treated as zero and left
// unnormalized to avoid division blow-up.
const normEpsilon = 1e-8

// Dot returns the dot product of a and b.
// Slices of unequal length are compared over the shorter prefix.
func Dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Normalize scales v to unit length in place and returns it.
// Near-zero vectors are returned unchanged.
func Normalize(v []float64) []float64 {
	n := Norm(v)
	if n < normEpsilon {
		return v
	}
	for i := range v {
		v[i] /= n
	}
	return v
}

// IsNormalized reports whether v has unit length within tol, or is zero.
func IsNormalized(v []float64, tol float64) bool {
	n := Norm(v)
	return n < normEpsilon || math.Abs(n-1) <= tol
}

// Zero returns a zero vector of the given dimension.
func Zero(dim int) []float64 {
	return make([]float64, dim)
}

// IsZero reports whether v is the zero vector.
func IsZero(v []float64) bool {
	return Norm(v) < normEpsilon
}

// Clone returns an independent copy of v.
func Clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// Blend computes normalize((1-alpha)*base + alpha*signal*other) into a new
// slice. This is the user-side online update rule.
func Blend(base, other []float64, alpha, signal float64) []float64 {
	n := len(base)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var o float64
		if i < len(other) {
			o = other[i]
		}
		out[i] = (1-alpha)*base[i] + alpha*signal*o
	}
	return Normalize(out)
}

// Nudge computes normalize(base + rate*signal*other) into a new slice.
// This is the item-side online update rule.
func Nudge(base, other []float64, rate, signal float64) []float64 {
	n := len(base)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var o float64
		if i < len(other) {
			o = other[i]
		}
		out[i] = base[i] + rate*signal*o
	}
	return Normalize(out)
}
