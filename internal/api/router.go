// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

// Package api provides the HTTP surface using the chi router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/ranklab/internal/config"
)

// NewRouter builds the full route tree.
func NewRouter(h *Handlers, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	rateLimit := cfg.RateLimitPerMinute
	if rateLimit <= 0 {
		rateLimit = 600
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimit, time.Minute))
		r.Use(Metrics)

		r.Post("/recommend", h.Recommend)
		r.Post("/engage", h.Engage)
		r.Post("/embed", h.Embed)
		r.Post("/embed-post", h.EmbedPost)
		r.Post("/backfill-embeddings", h.BackfillEmbeddings)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/weights", h.Weights)
			r.Post("/weights", h.UpdateWeights)
			r.Get("/weights/audit", h.WeightAudit)
			r.Get("/stats", h.Stats)
			r.Post("/consistency", h.VerifyConsistency)
		})
	})

	return r
}
