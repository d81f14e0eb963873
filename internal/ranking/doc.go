// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

// Package ranking implements the candidate recommendation pipeline.
//
// # Architecture
//
// One request flows through fixed stages:
//
//	query hydration → {in-network source ∥ two-tower retrieval} → merge →
//	parallel candidate hydration → pre-scoring filters → action scoring →
//	weighted combination → diversity adjuster → network adjuster →
//	top-K selection → post-selection filters
//
// Sourcing and hydration fan out concurrently; filters and scoring stages run
// sequentially over the full candidate list because later stages depend on
// whole-list state (diversity position) or cumulative filter invariants.
//
// # Design Principles
//
//   - Deterministic: fixed inputs produce byte-identical ranked output,
//     including tie-breaks
//   - Isolated: scoring one candidate never depends on which other candidates
//     share its batch
//   - Degradable: a failed sourcing branch or hydration degrades quality,
//     never aborts the request; only an unresolvable user is fatal
//   - Consistent: scoring weights are read once per request and carried by
//     value through every stage
//
// # Thread Safety
//
// A Pipeline is safe for concurrent use. All per-request state lives in the
// request's candidate slice; shared stores are read-only from this package.
package ranking
