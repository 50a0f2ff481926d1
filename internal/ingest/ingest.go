// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package ingest accepts image uploads and turns them into durable
// recognition jobs. Acceptance is atomic from the caller's view: on any
// failure after the blob write, the blob is rolled back best-effort and
// no job record remains claimable.
package ingest

import (
	"context"
	"fmt"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/metrics"
	"github.com/tomtom215/pantrio/internal/models"
	"github.com/tomtom215/pantrio/internal/store"
)

// ValidationError rejects an upload before any state is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Publisher dispatches queued jobs to the worker pool.
type Publisher interface {
	PublishJobQueued(ctx context.Context, job *models.RecognitionJob) error
}

// Ingestor validates uploads, persists them, and enqueues recognition
// jobs.
type Ingestor struct {
	blobs *store.BadgerBlobStore
	jobs  *store.JobStore
	bus   Publisher
	cfg   config.IngestConfig
}

// New creates an ingestor over the given stores and dispatch publisher.
func New(blobs *store.BadgerBlobStore, jobs *store.JobStore, bus Publisher, cfg config.IngestConfig) *Ingestor {
	return &Ingestor{blobs: blobs, jobs: jobs, bus: bus, cfg: cfg}
}

// Submit accepts an uploaded image and returns the queued job. The job
// is durable before the dispatch message is published; a worker that
// receives the message finds the record claimable.
func (i *Ingestor) Submit(ctx context.Context, userID string, image []byte, contentType string) (*models.RecognitionJob, error) {
	if err := i.validate(userID, image, contentType); err != nil {
		return nil, err
	}

	ref, err := i.blobs.Put(ctx, image, contentType)
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	job := models.NewRecognitionJob(userID, ref)
	if err := i.jobs.Create(ctx, job); err != nil {
		i.rollbackBlob(ctx, ref)
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := i.bus.PublishJobQueued(ctx, job); err != nil {
		// The reaper cannot see a job no worker will ever claim, so an
		// undispatched job must not stay queued.
		if ferr := i.jobs.Fail(ctx, job.JobID, "DispatchFailed"); ferr != nil {
			logging.Error().Err(ferr).Str("job_id", job.JobID).Msg("Failed to mark undispatched job")
		}
		i.rollbackBlob(ctx, ref)
		return nil, fmt.Errorf("dispatch job: %w", err)
	}

	metrics.JobsSubmitted.Inc()
	logging.Info().
		Str("job_id", job.JobID).
		Str("user_id", userID).
		Int("bytes", len(image)).
		Str("content_type", contentType).
		Msg("Recognition job queued")
	return job, nil
}

func (i *Ingestor) validate(userID string, image []byte, contentType string) error {
	if userID == "" {
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if len(image) == 0 {
		return &ValidationError{Field: "image", Reason: "must not be empty"}
	}
	if int64(len(image)) > i.cfg.MaxImageBytes {
		return &ValidationError{
			Field:  "image",
			Reason: fmt.Sprintf("exceeds %d byte limit", i.cfg.MaxImageBytes),
		}
	}
	if !i.contentTypeAllowed(contentType) {
		return &ValidationError{
			Field:  "content_type",
			Reason: fmt.Sprintf("%q is not an accepted image type", contentType),
		}
	}
	return nil
}

func (i *Ingestor) contentTypeAllowed(contentType string) bool {
	for _, allowed := range i.cfg.AllowedContentTypes {
		if contentType == allowed {
			return true
		}
	}
	return false
}

func (i *Ingestor) rollbackBlob(ctx context.Context, ref string) {
	if err := i.blobs.Delete(ctx, ref); err != nil {
		logging.Warn().Err(err).Str("ref", ref).Msg("Orphaned image blob after failed submit")
	}
}
