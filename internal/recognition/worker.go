// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package recognition drives claimed jobs through inference, resolution,
// and pantry reconciliation. Workers consume dispatch messages; the
// reaper recovers jobs whose workers died mid-claim.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/eventbus"
	"github.com/tomtom215/pantrio/internal/inference"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/metrics"
	"github.com/tomtom215/pantrio/internal/models"
	"github.com/tomtom215/pantrio/internal/pantry"
	"github.com/tomtom215/pantrio/internal/resolver"
	"github.com/tomtom215/pantrio/internal/store"
)

// Failure reasons recorded on terminally failed jobs.
const (
	ReasonAttemptsExhausted = "InferenceTimeout"
	ReasonInvalidImage      = "InvalidImage"
	ReasonImageMissing      = "ImageMissing"
)

// Recognizer runs inference on an image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte, contentType string) ([]models.RecognitionCandidate, error)
}

// CompletionPublisher announces terminal job outcomes.
type CompletionPublisher interface {
	PublishCompleted(ctx context.Context, event eventbus.RecognitionCompletedEvent) error
}

// Worker processes one dispatch message at a time through the pipeline.
// Multiple workers share the job store; the claim protocol guarantees
// each job runs on exactly one of them.
type Worker struct {
	jobs       *store.JobStore
	blobs      store.BlobStore
	recognizer Recognizer
	resolver   *resolver.Resolver
	reconciler *pantry.Reconciler
	bus        CompletionPublisher
	cfg        config.InferenceConfig
}

// NewWorker wires a recognition worker.
func NewWorker(
	jobs *store.JobStore,
	blobs store.BlobStore,
	recognizer Recognizer,
	res *resolver.Resolver,
	rec *pantry.Reconciler,
	bus CompletionPublisher,
	cfg config.InferenceConfig,
) *Worker {
	return &Worker{
		jobs:       jobs,
		blobs:      blobs,
		recognizer: recognizer,
		resolver:   res,
		reconciler: rec,
		bus:        bus,
		cfg:        cfg,
	}
}

// HandleJobQueued is the router handler for dispatch messages. Returning
// an error triggers middleware retry with backoff; a released job is
// claimable again on redelivery.
func (w *Worker) HandleJobQueued(msg *message.Message) error {
	event, err := eventbus.DecodeJobQueued(msg)
	if err != nil {
		// Malformed payloads never become processable; let the poison
		// queue keep them.
		logging.Error().Err(err).Str("message_uuid", msg.UUID).Msg("Undecodable dispatch message")
		return err
	}
	return w.Process(msg.Context(), event.JobID)
}

// Process claims and runs a single job. A nil return means the message
// is handled: the job reached a terminal state or was not claimable.
func (w *Worker) Process(ctx context.Context, jobID string) error {
	job, err := w.jobs.Claim(ctx, jobID, w.cfg.VisibilityTimeout)
	if err != nil {
		if errors.Is(err, store.ErrJobNotClaimable) || errors.Is(err, store.ErrJobNotFound) {
			logging.Debug().Str("job_id", jobID).Err(err).Msg("Dispatch skipped, job not claimable")
			return nil
		}
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}

	if job.Attempts > w.cfg.MaxAttempts {
		return w.failJob(ctx, job, ReasonAttemptsExhausted)
	}

	log := logging.Info().Str("job_id", job.JobID).Str("user_id", job.UserID).Int("attempt", job.Attempts)
	log.Msg("Processing recognition job")

	image, contentType, err := w.blobs.GetWithType(ctx, job.ImageRef)
	if err != nil {
		if errors.Is(err, store.ErrBlobNotFound) {
			return w.failJob(ctx, job, ReasonImageMissing)
		}
		return w.releaseAndRetry(ctx, job, fmt.Errorf("load image %s: %w", job.ImageRef, err))
	}

	candidates, err := w.recognizer.Recognize(ctx, image, contentType)
	if err != nil {
		if errors.Is(err, inference.ErrInvalidInput) {
			return w.failJob(ctx, job, ReasonInvalidImage)
		}
		if job.Attempts >= w.cfg.MaxAttempts {
			return w.failJob(ctx, job, ReasonAttemptsExhausted)
		}
		return w.releaseAndRetry(ctx, job, fmt.Errorf("recognize job %s: %w", job.JobID, err))
	}

	resolved := w.resolver.Resolve(job.JobID, candidates)

	report, err := w.reconciler.Reconcile(ctx, job.JobID, job.UserID, resolved)
	if err != nil {
		// Reconciliation is idempotent per job, so a retried message
		// cannot double-count items that already landed.
		return w.releaseAndRetry(ctx, job, fmt.Errorf("reconcile job %s: %w", job.JobID, err))
	}

	if err := w.jobs.Complete(ctx, job.JobID); err != nil {
		return w.releaseAndRetry(ctx, job, fmt.Errorf("complete job %s: %w", job.JobID, err))
	}
	metrics.JobsCompleted.WithLabelValues(string(models.JobCompleted)).Inc()

	w.cleanupBlob(ctx, job.ImageRef)
	w.announce(ctx, eventbus.RecognitionCompletedEvent{
		JobID:       job.JobID,
		UserID:      job.UserID,
		Status:      models.JobCompleted,
		Report:      report,
		CompletedAt: time.Now().UTC(),
	})

	logging.Info().
		Str("job_id", job.JobID).
		Int("resolved", len(resolved)).
		Int("applied", report.Applied()).
		Int("pending", report.Pending()).
		Msg("Recognition job completed")
	return nil
}

func (w *Worker) failJob(ctx context.Context, job *models.RecognitionJob, reason string) error {
	if err := w.jobs.Fail(ctx, job.JobID, reason); err != nil {
		return fmt.Errorf("fail job %s: %w", job.JobID, err)
	}
	metrics.JobsCompleted.WithLabelValues(string(models.JobFailed)).Inc()

	w.cleanupBlob(ctx, job.ImageRef)
	w.announce(ctx, eventbus.RecognitionCompletedEvent{
		JobID:         job.JobID,
		UserID:        job.UserID,
		Status:        models.JobFailed,
		FailureReason: reason,
		CompletedAt:   time.Now().UTC(),
	})

	logging.Warn().Str("job_id", job.JobID).Str("reason", reason).Msg("Recognition job failed")
	return nil
}

// releaseAndRetry hands the claim back and propagates the error so the
// router redelivers the message with backoff.
func (w *Worker) releaseAndRetry(ctx context.Context, job *models.RecognitionJob, cause error) error {
	if err := w.jobs.Release(ctx, job.JobID); err != nil {
		logging.Error().Err(err).Str("job_id", job.JobID).Msg("Failed to release claim")
	}
	return cause
}

func (w *Worker) announce(ctx context.Context, event eventbus.RecognitionCompletedEvent) {
	if w.bus == nil {
		return
	}
	if err := w.bus.PublishCompleted(ctx, event); err != nil {
		// Best-effort: the durable job record already carries the outcome.
		logging.Warn().Err(err).Str("job_id", event.JobID).Msg("Failed to announce job completion")
	}
}

func (w *Worker) cleanupBlob(ctx context.Context, ref string) {
	if err := w.blobs.Delete(ctx, ref); err != nil {
		logging.Warn().Err(err).Str("ref", ref).Msg("Failed to remove image blob for terminal job")
	}
}
