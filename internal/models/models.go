// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package models defines the core data types shared across the recognition
// pipeline: jobs, candidates, resolved ingredients, pantry items, recipes,
// and match results.
package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of a recognition job.
type JobStatus string

const (
	// JobQueued means the job is waiting to be claimed by a worker.
	JobQueued JobStatus = "queued"
	// JobProcessing means a worker has claimed the job and inference is in flight.
	JobProcessing JobStatus = "processing"
	// JobCompleted is terminal: candidates were produced and reconciled.
	JobCompleted JobStatus = "completed"
	// JobFailed is terminal: the job exhausted its retry budget or was rejected.
	JobFailed JobStatus = "failed"
)

// IsTerminal reports whether the status is a final state.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// RecognitionJob tracks one uploaded image through the pipeline.
// The job record is owned by the queue until a worker claims it; claiming
// is an atomic status transition from queued to processing.
type RecognitionJob struct {
	JobID       string    `json:"job_id"`
	UserID      string    `json:"user_id"`
	ImageRef    string    `json:"image_ref"`
	Status      JobStatus `json:"status"`
	SubmittedAt time.Time `json:"submitted_at"`

	// Attempts counts inference attempts made so far.
	Attempts int `json:"attempts,omitempty"`

	// ClaimedAt and ClaimExpiresAt track the visibility window of the
	// current claim. A processing job whose claim has expired becomes
	// reclaimable.
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	ClaimExpiresAt *time.Time `json:"claim_expires_at,omitempty"`

	// FailureReason is set when Status is failed.
	FailureReason string `json:"failure_reason,omitempty"`

	// CompletedAt is set on terminal transition.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewRecognitionJob creates a queued job with a fresh ID.
func NewRecognitionJob(userID, imageRef string) *RecognitionJob {
	return &RecognitionJob{
		JobID:       uuid.New().String(),
		UserID:      userID,
		ImageRef:    imageRef,
		Status:      JobQueued,
		SubmittedAt: time.Now().UTC(),
	}
}

// BoundingRegion is a normalized rectangle within the source image.
// Coordinates are fractions of image dimensions in [0,1].
type BoundingRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the normalized area of the region.
func (r BoundingRegion) Area() float64 {
	return r.Width * r.Height
}

// IntersectionOverUnion computes the IoU overlap of two regions.
// Returns 0 when the regions do not intersect.
func (r BoundingRegion) IntersectionOverUnion(other BoundingRegion) float64 {
	x1 := maxf(r.X, other.X)
	y1 := maxf(r.Y, other.Y)
	x2 := minf(r.X+r.Width, other.X+other.Width)
	y2 := minf(r.Y+r.Height, other.Y+other.Height)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	inter := (x2 - x1) * (y2 - y1)
	union := r.Area() + other.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// RecognitionCandidate is one raw detection from the inference backend.
// Candidates are ephemeral: produced per job, consumed by the resolver,
// never persisted.
type RecognitionCandidate struct {
	Label      string          `json:"label"`
	Confidence float64         `json:"confidence"`
	Region     *BoundingRegion `json:"region,omitempty"`
}

// ResolvedIngredient is a canonical ingredient identity produced by the
// resolver. Immutable once created.
type ResolvedIngredient struct {
	IngredientID  string  `json:"ingredient_id"`
	CanonicalName string  `json:"canonical_name"`
	Confidence    float64 `json:"confidence"`
	SourceJobID   string  `json:"source_job_id"`
}

// PantryItem is one active inventory entry. At most one active item exists
// per (userID, ingredientID, storageLocation).
type PantryItem struct {
	ItemID          string    `json:"item_id"`
	UserID          string    `json:"user_id"`
	IngredientID    string    `json:"ingredient_id"`
	Quantity        float64   `json:"quantity"`
	Unit            string    `json:"unit"`
	StorageLocation string    `json:"storage_location"`
	ExpirationDate  time.Time `json:"expiration_date"`
	LastUpdatedAt   time.Time `json:"last_updated_at"`
}

// RecipeIngredient is one requirement line of a recipe.
type RecipeIngredient struct {
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
	Unit         string  `json:"unit"`
}

// Recipe is a read-only record from the recipe corpus.
type Recipe struct {
	RecipeID            string             `json:"recipe_id"`
	Name                string             `json:"name"`
	RequiredIngredients []RecipeIngredient `json:"required_ingredients"`
	Tags                []string           `json:"tags,omitempty"`
	AddedAt             time.Time          `json:"added_at"`
}

// MatchResult is one scored recipe for a pantry snapshot. Ephemeral per
// matching request and cached under the pantry fingerprint.
type MatchResult struct {
	RecipeID           string   `json:"recipe_id"`
	Name               string   `json:"name"`
	Score              float64  `json:"score"`
	MatchedIngredients []string `json:"matched_ingredients"`
	MissingIngredients []string `json:"missing_ingredients"`
}

// ReconciliationAction describes what the reconciler did for one ingredient.
type ReconciliationAction string

const (
	// ActionCreated means a new pantry item was created.
	ActionCreated ReconciliationAction = "created"
	// ActionIncremented means an existing item's quantity was incremented.
	ActionIncremented ReconciliationAction = "incremented"
	// ActionPendingConfirmation means confidence was below the auto-accept
	// threshold; the ingredient is surfaced for user confirmation.
	ActionPendingConfirmation ReconciliationAction = "pending_confirmation"
	// ActionFailed means the per-item write failed; other items proceed.
	ActionFailed ReconciliationAction = "failed"
	// ActionSkipped means the job was already applied (redelivery dedupe).
	ActionSkipped ReconciliationAction = "skipped"
)

// ReconciliationEntry is the per-ingredient outcome of a reconcile call.
type ReconciliationEntry struct {
	IngredientID  string               `json:"ingredient_id"`
	CanonicalName string               `json:"canonical_name"`
	Action        ReconciliationAction `json:"action"`
	Confidence    float64              `json:"confidence"`
	Error         string               `json:"error,omitempty"`
}

// ReconciliationReport summarizes a pantry merge for one job.
type ReconciliationReport struct {
	JobID       string                `json:"job_id"`
	UserID      string                `json:"user_id"`
	Entries     []ReconciliationEntry `json:"entries"`
	Fingerprint string                `json:"fingerprint,omitempty"`
	AppliedAt   time.Time             `json:"applied_at"`
}

// Applied counts entries that changed the pantry.
func (r *ReconciliationReport) Applied() int {
	n := 0
	for _, e := range r.Entries {
		if e.Action == ActionCreated || e.Action == ActionIncremented {
			n++
		}
	}
	return n
}

// Pending counts entries awaiting user confirmation.
func (r *ReconciliationReport) Pending() int {
	n := 0
	for _, e := range r.Entries {
		if e.Action == ActionPendingConfirmation {
			n++
		}
	}
	return n
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
