// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

// Package learning implements the two-tier online embedding update path.
//
// # Architecture
//
// Engagement events flow through a Watermill bus (in-process Go channels by
// default, NATS JetStream when configured):
//
//	API → Publisher → bus → Consumer → RealtimeUpdater → vector stores
//	                                 → Rebuilder (every N events or on timer)
//
// The real-time tier applies cheap incremental vector updates per event. The
// batch tier refits the shared projection on accumulated training pairs,
// re-derives every item vector from its text, and installs the new vector
// space in one atomic swap.
//
// # Thread Safety
//
// The real-time updater serializes updates per (user, post) pair through a
// striped mutex table; different pairs proceed concurrently. The rebuilder is
// single-flight: a run that starts while another is active returns
// immediately.
package learning
