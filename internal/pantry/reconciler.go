// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package pantry merges resolved ingredients into per-user inventory and
// maintains the pantry fingerprint that keys the match cache.
package pantry

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/metrics"
	"github.com/tomtom215/pantrio/internal/models"
	"github.com/tomtom215/pantrio/internal/store"
)

// Invalidator evicts cached match results for a stale fingerprint.
// Satisfied by the match cache.
type Invalidator interface {
	Invalidate(fingerprint string)
}

// Reconciler applies a job's resolved ingredients to a user's pantry.
// The merge is idempotent per job: a redelivered completion is detected
// via the job's applied marker and skipped entirely.
type Reconciler struct {
	pantry    *store.PantryStore
	jobs      *store.JobStore
	shelfLife ShelfLife
	cache     Invalidator
	cfg       config.PantryConfig
}

// NewReconciler wires the reconciler. cache may be nil when no match
// cache is attached (tests, batch imports).
func NewReconciler(pantry *store.PantryStore, jobs *store.JobStore, shelfLife ShelfLife, cache Invalidator, cfg config.PantryConfig) *Reconciler {
	return &Reconciler{
		pantry:    pantry,
		jobs:      jobs,
		shelfLife: shelfLife,
		cache:     cache,
		cfg:       cfg,
	}
}

// Reconcile merges resolved ingredients into the user's pantry and
// returns a per-ingredient report. High-confidence entries are applied
// (created or incremented); entries below the auto-accept threshold are
// surfaced as pending confirmation instead of silently written. A
// persistence error on one item does not abort the rest of the batch.
// On any applied change the stale fingerprint is invalidated.
func (r *Reconciler) Reconcile(ctx context.Context, jobID, userID string, resolved []models.ResolvedIngredient) (*models.ReconciliationReport, error) {
	report := &models.ReconciliationReport{
		JobID:     jobID,
		UserID:    userID,
		AppliedAt: time.Now().UTC(),
	}

	applied, err := r.jobs.WasApplied(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("check applied marker for job %s: %w", jobID, err)
	}
	if applied {
		logging.Debug().Str("job_id", jobID).Msg("Job already reconciled, skipping redelivery")
		for _, ri := range resolved {
			report.Entries = append(report.Entries, models.ReconciliationEntry{
				IngredientID:  ri.IngredientID,
				CanonicalName: ri.CanonicalName,
				Action:        models.ActionSkipped,
				Confidence:    ri.Confidence,
			})
			metrics.ReconcileOps.WithLabelValues(string(models.ActionSkipped)).Inc()
		}
		return report, nil
	}

	staleFingerprint := ""
	if before, err := r.pantry.Snapshot(ctx, userID); err == nil {
		staleFingerprint = Fingerprint(before, r.cfg.QuantityBucket)
	}

	changed := false
	for _, ri := range resolved {
		entry := r.applyOne(ctx, userID, ri)
		report.Entries = append(report.Entries, entry)
		metrics.ReconcileOps.WithLabelValues(string(entry.Action)).Inc()
		if entry.Action == models.ActionCreated || entry.Action == models.ActionIncremented {
			changed = true
		}
	}

	// Marked even on partial failure: re-running the batch would
	// double-count the items that did succeed.
	if err := r.jobs.MarkApplied(ctx, jobID); err != nil {
		return report, fmt.Errorf("mark job %s applied: %w", jobID, err)
	}

	if changed {
		after, err := r.pantry.Snapshot(ctx, userID)
		if err != nil {
			return report, fmt.Errorf("snapshot after reconcile: %w", err)
		}
		report.Fingerprint = Fingerprint(after, r.cfg.QuantityBucket)
		if r.cache != nil && staleFingerprint != "" && staleFingerprint != report.Fingerprint {
			r.cache.Invalidate(staleFingerprint)
		}
	} else {
		report.Fingerprint = staleFingerprint
	}

	return report, nil
}

// applyOne merges a single resolved ingredient and classifies the outcome.
func (r *Reconciler) applyOne(ctx context.Context, userID string, ri models.ResolvedIngredient) models.ReconciliationEntry {
	entry := models.ReconciliationEntry{
		IngredientID:  ri.IngredientID,
		CanonicalName: ri.CanonicalName,
		Confidence:    ri.Confidence,
	}

	if ri.Confidence < r.cfg.AutoAcceptThreshold {
		entry.Action = models.ActionPendingConfirmation
		return entry
	}

	expiry := time.Now().UTC().Add(r.shelfLife.For(ri.IngredientID))
	res, err := r.pantry.Increment(ctx, userID, ri.IngredientID, r.cfg.DefaultStorageLocation,
		r.cfg.IncrementQuantity, r.cfg.DefaultUnit, expiry)
	if err != nil {
		logging.Error().Err(err).
			Str("user_id", userID).
			Str("ingredient_id", ri.IngredientID).
			Msg("Pantry write failed, continuing batch")
		entry.Action = models.ActionFailed
		entry.Error = err.Error()
		return entry
	}

	if res.Created {
		entry.Action = models.ActionCreated
	} else {
		entry.Action = models.ActionIncremented
	}
	return entry
}

// Confirm applies a single previously pending ingredient after the user
// accepted it. The caller supplies the ingredient identity from the
// reconciliation report.
func (r *Reconciler) Confirm(ctx context.Context, userID, ingredientID string) (*store.UpsertResult, error) {
	staleFingerprint := ""
	if before, err := r.pantry.Snapshot(ctx, userID); err == nil {
		staleFingerprint = Fingerprint(before, r.cfg.QuantityBucket)
	}

	expiry := time.Now().UTC().Add(r.shelfLife.For(ingredientID))
	res, err := r.pantry.Increment(ctx, userID, ingredientID, r.cfg.DefaultStorageLocation,
		r.cfg.IncrementQuantity, r.cfg.DefaultUnit, expiry)
	if err != nil {
		return nil, fmt.Errorf("confirm ingredient %s: %w", ingredientID, err)
	}
	metrics.ReconcileOps.WithLabelValues(string(models.ActionCreated)).Inc()

	if r.cache != nil && staleFingerprint != "" {
		r.cache.Invalidate(staleFingerprint)
	}
	return res, nil
}

// InvalidateFor evicts cached matches for the user's current pantry
// fingerprint. Called before direct pantry edits so stale results do
// not outlive the change.
func (r *Reconciler) InvalidateFor(ctx context.Context, userID string) {
	if r.cache == nil {
		return
	}
	if snap, err := r.pantry.Snapshot(ctx, userID); err == nil {
		r.cache.Invalidate(Fingerprint(snap, r.cfg.QuantityBucket))
	}
}
