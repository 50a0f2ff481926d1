// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/ingest"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/matchcache"
	"github.com/tomtom215/pantrio/internal/matcher"
	"github.com/tomtom215/pantrio/internal/models"
	"github.com/tomtom215/pantrio/internal/notify"
	"github.com/tomtom215/pantrio/internal/pantry"
	"github.com/tomtom215/pantrio/internal/store"
	"github.com/tomtom215/pantrio/internal/validation"
)

// Handler carries the pipeline dependencies for all endpoints.
type Handler struct {
	ingestor   *ingest.Ingestor
	jobs       *store.JobStore
	pantry     *store.PantryStore
	recipes    *store.RecipeStore
	reconciler *pantry.Reconciler
	matches    *matchcache.Cache
	hub        *notify.Hub
	upgrader   websocket.Upgrader
	cfg        config.Config
	startedAt  time.Time
}

// NewHandler wires the HTTP handlers.
func NewHandler(
	ingestor *ingest.Ingestor,
	jobs *store.JobStore,
	pantryStore *store.PantryStore,
	recipes *store.RecipeStore,
	reconciler *pantry.Reconciler,
	matches *matchcache.Cache,
	hub *notify.Hub,
	cfg config.Config,
) *Handler {
	return &Handler{
		ingestor:   ingestor,
		jobs:       jobs,
		pantry:     pantryStore,
		recipes:    recipes,
		reconciler: reconciler,
		matches:    matches,
		hub:        hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		cfg:       cfg,
		startedAt: time.Now().UTC(),
	}
}

// SubmitImage accepts an image upload and queues a recognition job.
// The image arrives as the raw request body with its Content-Type.
func (h *Handler) SubmitImage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	userID := UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Ingest.MaxImageBytes+1)
	image, err := io.ReadAll(r.Body)
	if err != nil {
		rw.BadRequest("failed to read image body")
		return
	}

	job, err := h.ingestor.Submit(r.Context(), userID, image, r.Header.Get("Content-Type"))
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			rw.ValidationError(verr.Error(), map[string]string{"field": verr.Field})
			return
		}
		logging.Ctx(r.Context()).Error().Err(err).Msg("Image submission failed")
		rw.InternalError("failed to queue recognition job")
		return
	}

	rw.Accepted(job)
}

// GetJob returns a job owned by the authenticated user.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	jobID := chi.URLParam(r, "id")

	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			rw.NotFound("job not found")
			return
		}
		rw.StorageError(err)
		return
	}
	if job.UserID != UserIDFromContext(r.Context()) {
		// Ownership is not disclosed.
		rw.NotFound("job not found")
		return
	}
	rw.Success(job)
}

// CancelJob removes a queued job. Processing and terminal jobs cannot
// be cancelled.
func (h *Handler) CancelJob(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	jobID := chi.URLParam(r, "id")

	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			rw.NotFound("job not found")
			return
		}
		rw.StorageError(err)
		return
	}
	if job.UserID != UserIDFromContext(r.Context()) {
		rw.NotFound("job not found")
		return
	}

	if err := h.jobs.Cancel(r.Context(), jobID); err != nil {
		switch {
		case errors.Is(err, store.ErrJobNotFound):
			rw.NotFound("job not found")
		case errors.Is(err, store.ErrJobNotCancellable):
			rw.Conflict("job is already processing or finished")
		default:
			rw.StorageError(err)
		}
		return
	}
	rw.NoContent()
}

// ListPantry returns the user's active inventory.
func (h *Handler) ListPantry(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	items, err := h.pantry.List(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		rw.StorageError(err)
		return
	}
	rw.Success(items)
}

// putItemRequest is the manual pantry upsert payload.
type putItemRequest struct {
	IngredientID    string  `json:"ingredient_id"    validate:"required"`
	Quantity        float64 `json:"quantity"         validate:"gt=0"`
	Unit            string  `json:"unit"             validate:"required"`
	StorageLocation string  `json:"storage_location" validate:"required"`
	ExpirationDate  string  `json:"expiration_date,omitempty"`
}

// PutPantryItem creates or replaces an inventory entry.
func (h *Handler) PutPantryItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req putItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if verrs := validation.ValidateStruct(&req); verrs != nil {
		rw.ValidationError("invalid pantry item", verrs.Fields)
		return
	}

	expiry := time.Now().UTC().Add(14 * 24 * time.Hour)
	if req.ExpirationDate != "" {
		parsed, err := time.Parse(time.RFC3339, req.ExpirationDate)
		if err != nil {
			rw.BadRequest("expiration_date must be RFC 3339")
			return
		}
		expiry = parsed
	}

	item := &models.PantryItem{
		UserID:          UserIDFromContext(r.Context()),
		IngredientID:    req.IngredientID,
		Quantity:        req.Quantity,
		Unit:            req.Unit,
		StorageLocation: req.StorageLocation,
		ExpirationDate:  expiry,
	}
	h.reconciler.InvalidateFor(r.Context(), item.UserID)
	if err := h.pantry.Put(r.Context(), item); err != nil {
		rw.StorageError(err)
		return
	}
	rw.Created(item)
}

// DeletePantryItem removes one inventory entry.
func (h *Handler) DeletePantryItem(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	itemID := chi.URLParam(r, "id")
	userID := UserIDFromContext(r.Context())

	h.reconciler.InvalidateFor(r.Context(), userID)
	err := h.pantry.Delete(r.Context(), userID, itemID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			rw.NotFound("pantry item not found")
			return
		}
		rw.StorageError(err)
		return
	}
	rw.NoContent()
}

// confirmRequest accepts a previously pending ingredient.
type confirmRequest struct {
	IngredientID string `json:"ingredient_id" validate:"required"`
}

// ConfirmIngredient applies an ingredient the reconciler held back for
// user confirmation.
func (h *Handler) ConfirmIngredient(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if verrs := validation.ValidateStruct(&req); verrs != nil {
		rw.ValidationError("invalid confirmation", verrs.Fields)
		return
	}

	res, err := h.reconciler.Confirm(r.Context(), UserIDFromContext(r.Context()), req.IngredientID)
	if err != nil {
		rw.StorageError(err)
		return
	}
	rw.Success(res.Item)
}

// GetMatches returns ranked recipe matches for the user's pantry,
// served from the match cache.
func (h *Handler) GetMatches(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	opts := matcher.Options{}
	if raw := r.URL.Query().Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			rw.BadRequest("min_score must be a number in [0,1]")
			return
		}
		opts.MinScore = v
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			rw.BadRequest("limit must be a positive integer")
			return
		}
		opts.Limit = v
	}

	results, _, err := h.matches.GetOrCompute(r.Context(), UserIDFromContext(r.Context()), opts)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Match computation failed")
		rw.InternalError("failed to compute matches")
		return
	}

	rw.SuccessWithMeta(results, &APIMeta{
		Pagination: &PaginationMeta{Count: len(results), Limit: opts.Limit},
	})
}

// ImportRecipes bulk-loads a JSON recipe corpus.
func (h *Handler) ImportRecipes(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	count, err := h.recipes.Import(r.Context(), r.Body)
	if err != nil {
		rw.BadRequest("invalid recipe corpus: " + err.Error())
		return
	}
	rw.Created(map[string]int{"imported": count})
}

// ListRecipes pages through the recipe corpus.
func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			rw.BadRequest("limit must be in [1,500]")
			return
		}
		limit = v
	}
	cursor := r.URL.Query().Get("cursor")

	recipes, err := h.recipes.List(r.Context(), cursor, limit)
	if err != nil {
		rw.StorageError(err)
		return
	}

	next := ""
	if len(recipes) == limit {
		next = recipes[len(recipes)-1].RecipeID
	}
	rw.SuccessWithPagination(recipes, &PaginationMeta{
		Count:      len(recipes),
		Limit:      limit,
		HasMore:    next != "",
		NextCursor: next,
	})
}

// WebSocket upgrades the connection and registers it with the
// notification hub.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := notify.NewClient(h.hub, conn, userID)
	h.hub.Register <- client
	client.Start()
}

// healthData is the health endpoint payload.
type healthData struct {
	Status            string `json:"status"`
	UptimeSeconds     int64  `json:"uptime_seconds"`
	QueueDepth        int    `json:"queue_depth"`
	Recipes           int    `json:"recipes"`
	MatchCacheEntries int    `json:"match_cache_entries"`
}

// Health reports liveness plus basic pipeline gauges.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	depth, err := h.jobs.QueueDepth(r.Context())
	if err != nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "storage unavailable")
		return
	}
	recipeCount, err := h.recipes.Count(r.Context())
	if err != nil {
		rw.Error(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "storage unavailable")
		return
	}

	rw.Success(healthData{
		Status:            "ok",
		UptimeSeconds:     int64(time.Since(h.startedAt).Seconds()),
		QueueDepth:        depth,
		Recipes:           recipeCount,
		MatchCacheEntries: h.matches.Len(),
	})
}

// HealthLive is a minimal liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "ok"})
}
