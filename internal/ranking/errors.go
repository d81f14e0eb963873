// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package ranking

import "errors"

// Error taxonomy for the pipeline. Only ErrUserNotFound ever reaches the
// caller of Rank; everything else is absorbed as quality degradation and
// recorded in logs and metrics.
var (
	// ErrUserNotFound means the requesting user identifier does not resolve.
	// Fatal for the request; no partial feed is returned.
	ErrUserNotFound = errors.New("user not found")

	// ErrSourceFailed marks a failed sourcing branch. Recovered by proceeding
	// with the surviving branch and flagging the response as degraded.
	ErrSourceFailed = errors.New("candidate source failed")

	// ErrInvalidActionType rejects engagement ingestion with an action
	// outside the enumerated set.
	ErrInvalidActionType = errors.New("invalid action type")
)
