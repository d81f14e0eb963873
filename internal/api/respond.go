// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/ranklab/internal/logging"
)

// errorResponse is the uniform error body.
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON serializes v with the shared JSON codec.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("response encode failed")
	}
}

// writeError writes the uniform error body with the request ID attached.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
}

// decodeJSON parses a request body into dst, limited to 1 MiB.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst)
}
