// RankLab - Personalized Feed Ranking with Online Learning
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ranklab

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/ranklab/internal/logging"
	"github.com/tomtom215/ranklab/internal/models"
	"github.com/tomtom215/ranklab/internal/ranking"
	"github.com/tomtom215/ranklab/internal/store"
	"github.com/tomtom215/ranklab/internal/vector"
)

// Handlers carries the dependencies of every HTTP handler.
type Handlers struct {
	pipeline  *ranking.Pipeline
	publisher learningPublisher
	db        *store.DB
	items     *vector.ItemStore
	users     *vector.UserStore
	encoder   vector.Encoder
	validate  *validator.Validate
	logger    zerolog.Logger
}

// learningPublisher is the slice of the learning package the API needs.
type learningPublisher interface {
	Publish(event *models.EngagementEvent) error
}

// NewHandlers wires the handler set.
func NewHandlers(
	pipeline *ranking.Pipeline,
	publisher learningPublisher,
	db *store.DB,
	items *vector.ItemStore,
	users *vector.UserStore,
	encoder vector.Encoder,
) *Handlers {
	return &Handlers{
		pipeline:  pipeline,
		publisher: publisher,
		db:        db,
		items:     items,
		users:     users,
		encoder:   encoder,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logging.Logger().With().Str("component", "api").Logger(),
	}
}

// Health reports service and database liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Health(r.Context()); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type recommendRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
	Limit  int    `json:"limit" validate:"gte=0,lte=1000"`
}

// Recommend ranks a feed for the requesting user.
func (h *Handlers) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if !h.bind(w, r, &req) {
		return
	}
	userID, _ := uuid.Parse(req.UserID)

	resp, err := h.pipeline.Rank(r.Context(), &ranking.Request{
		UserID:    userID,
		Limit:     req.Limit,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		if errors.Is(err, ranking.ErrUserNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		h.logger.Error().Err(err).Msg("ranking failed")
		writeError(w, r, http.StatusInternalServerError, "ranking failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type engageRequest struct {
	UserID      string  `json:"user_id" validate:"required,uuid"`
	PostID      string  `json:"post_id" validate:"required,uuid"`
	Action      string  `json:"action" validate:"required"`
	DwellMS     int64   `json:"dwell_ms" validate:"gte=0"`
	Position    int     `json:"position" validate:"gte=0"`
	ServedScore float64 `json:"served_score"`
}

// Engage ingests one engagement event: append to the log, then publish to
// the learning bus. The append is the source of truth; a publish failure is
// logged and healed by the next batch re-derivation rather than failing the
// ingestion.
func (h *Handlers) Engage(w http.ResponseWriter, r *http.Request) {
	var req engageRequest
	if !h.bind(w, r, &req) {
		return
	}

	action := models.ActionType(req.Action)
	if !action.IsValid() {
		writeError(w, r, http.StatusBadRequest, "invalid action type")
		return
	}
	userID, _ := uuid.Parse(req.UserID)
	postID, _ := uuid.Parse(req.PostID)

	event := models.NewEngagementEvent(userID, postID, action)
	event.DwellMS = req.DwellMS
	event.Position = req.Position
	event.ServedScore = req.ServedScore

	if err := h.db.AppendEvent(r.Context(), event); err != nil {
		h.logger.Error().Err(err).Msg("event append failed")
		writeError(w, r, http.StatusInternalServerError, "event append failed")
		return
	}
	if err := h.publisher.Publish(event); err != nil {
		h.logger.Warn().Err(err).
			Str("event_id", event.EventID.String()).
			Msg("event publish failed, learning update deferred")
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"event_id": event.EventID,
		"status":   "accepted",
	})
}

type embedRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
}

// Embed returns the raw encoder vector for a text.
func (h *Handlers) Embed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if !h.bind(w, r, &req) {
		return
	}

	vec, err := h.encoder.Encode(r.Context(), req.Text)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "encoder unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"vector":    vec,
		"dimension": h.encoder.Dimension(),
	})
}

type embedPostRequest struct {
	PostID    string `json:"post_id" validate:"required,uuid"`
	Overwrite bool   `json:"overwrite"`
}

// EmbedPost computes and persists the item vector for one post. Idempotent:
// re-invoking on an already-embedded post is a no-op unless overwrite is set.
func (h *Handlers) EmbedPost(w http.ResponseWriter, r *http.Request) {
	var req embedPostRequest
	if !h.bind(w, r, &req) {
		return
	}
	postID, _ := uuid.Parse(req.PostID)

	if h.items.Has(postID) && !req.Overwrite {
		writeJSON(w, http.StatusOK, map[string]string{"status": "exists"})
		return
	}

	post, err := h.db.Post(r.Context(), postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "post not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "post lookup failed")
		return
	}

	vec, err := h.encoder.Encode(r.Context(), post.Text)
	if err != nil {
		writeError(w, r, http.StatusServiceUnavailable, "encoder unavailable")
		return
	}
	err = h.items.Put(&vector.ItemVector{
		PostID:    post.ID,
		AuthorID:  post.AuthorID,
		CreatedAt: post.CreatedAt,
		Reply:     post.IsReply(),
		Vec:       vec,
	})
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "vector store write failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "embedded"})
}

type backfillRequest struct {
	BatchSize int `json:"batch_size" validate:"gte=0,lte=10000"`
}

// BackfillEmbeddings embeds up to batch-size posts that have no item vector
// yet. Re-invoke until embedded reaches zero to cover the whole corpus.
func (h *Handlers) BackfillEmbeddings(w http.ResponseWriter, r *http.Request) {
	var req backfillRequest
	if !h.bind(w, r, &req) {
		return
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	posts, err := h.db.AllPosts(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "post scan failed")
		return
	}

	embedded, skipped := 0, 0
	for _, post := range posts {
		if h.items.Has(post.ID) {
			skipped++
			continue
		}
		if embedded >= batchSize {
			break
		}
		vec, err := h.encoder.Encode(r.Context(), post.Text)
		if err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "encoder unavailable")
			return
		}
		err = h.items.Put(&vector.ItemVector{
			PostID:    post.ID,
			AuthorID:  post.AuthorID,
			CreatedAt: post.CreatedAt,
			Reply:     post.IsReply(),
			Vec:       vec,
		})
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "vector store write failed")
			return
		}
		embedded++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"embedded":  embedded,
		"skipped":   skipped,
		"remaining": len(posts) - skipped - embedded,
	})
}

// Weights returns the active weight table with per-action descriptions.
func (h *Handlers) Weights(w http.ResponseWriter, r *http.Request) {
	weights, err := h.db.ScoringWeights(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "weight lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"weights":      weights,
		"descriptions": models.WeightDescriptions,
	})
}

type weightsUpdateRequest struct {
	Weights map[string]float64 `json:"weights" validate:"required,min=1"`
}

// UpdateWeights applies a partial or full weight update with an audit trail.
func (h *Handlers) UpdateWeights(w http.ResponseWriter, r *http.Request) {
	var req weightsUpdateRequest
	if !h.bind(w, r, &req) {
		return
	}

	update := make(models.ScoringWeights, len(req.Weights))
	for name, weight := range req.Weights {
		action := models.ActionType(name)
		if !action.IsValid() || action == models.ActionView {
			writeError(w, r, http.StatusBadRequest, "unknown action type: "+name)
			return
		}
		update[action] = weight
	}

	changes, err := h.db.UpdateWeights(r.Context(), update)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "weight update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changes": changes,
		"applied": len(changes),
	})
}

// WeightAudit returns recent audit entries.
func (h *Handlers) WeightAudit(w http.ResponseWriter, r *http.Request) {
	audit, err := h.db.WeightAudit(r.Context(), 100)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "audit lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": audit})
}

// Stats reports corpus and vector population counts.
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userCount, err := h.db.UserCount(ctx)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "stats query failed")
		return
	}
	postCount, err := h.db.PostCount(ctx)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "stats query failed")
		return
	}
	eventCount, err := h.db.EventCount(ctx)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "stats query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users":        userCount,
		"posts":        postCount,
		"events":       eventCount,
		"user_vectors": h.users.Count(),
		"item_vectors": h.items.Count(),
		"timestamp":    time.Now().UTC(),
	})
}

type consistencyRequest struct {
	UserID  string `json:"user_id" validate:"required,uuid"`
	PostID  string `json:"post_id" validate:"required,uuid"`
	Batches int    `json:"batches" validate:"gte=0,lte=64"`
}

// VerifyConsistency runs the candidate-isolation check for one post and
// persists the result to the verification log.
func (h *Handlers) VerifyConsistency(w http.ResponseWriter, r *http.Request) {
	var req consistencyRequest
	if !h.bind(w, r, &req) {
		return
	}
	userID, _ := uuid.Parse(req.UserID)
	postID, _ := uuid.Parse(req.PostID)
	batches := req.Batches
	if batches == 0 {
		batches = 5
	}

	report, err := h.pipeline.VerifyCandidate(r.Context(), userID, postID, batches)
	if err != nil {
		if errors.Is(err, ranking.ErrUserNotFound) || errors.Is(err, store.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user or post not found")
			return
		}
		h.logger.Error().Err(err).Msg("consistency check failed")
		writeError(w, r, http.StatusInternalServerError, "consistency check failed")
		return
	}

	err = h.db.SaveConsistencyCheck(r.Context(), &store.ConsistencyCheck{
		UserID:        report.UserID,
		PostID:        report.PostID,
		MaxDifference: report.MaxDifference,
		Variance:      report.Variance,
		Epsilon:       report.Epsilon,
		Consistent:    report.Consistent,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("consistency result not persisted")
	}

	writeJSON(w, http.StatusOK, report)
}

// bind decodes and validates a JSON request body, writing the error response
// itself on failure.
func (h *Handlers) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "malformed request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "validation failed: "+err.Error())
		return false
	}
	return true
}
