// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package recognition

import (
	"context"
	"time"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/eventbus"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/metrics"
	"github.com/tomtom215/pantrio/internal/models"
	"github.com/tomtom215/pantrio/internal/store"
)

// DispatchPublisher redispatches reclaimed jobs to the worker pool.
type DispatchPublisher interface {
	PublishJobQueued(ctx context.Context, job *models.RecognitionJob) error
}

// Reaper sweeps expired claims back to the queue so jobs survive worker
// crashes. Jobs whose attempt budget is spent are failed instead of
// redispatched.
type Reaper struct {
	jobs        *store.JobStore
	bus         DispatchPublisher
	completions CompletionPublisher
	cfg         config.InferenceConfig
}

// NewReaper wires a claim reaper. completions may be nil.
func NewReaper(jobs *store.JobStore, bus DispatchPublisher, completions CompletionPublisher, cfg config.InferenceConfig) *Reaper {
	return &Reaper{jobs: jobs, bus: bus, completions: completions, cfg: cfg}
}

// Serve runs the sweep loop until the context is cancelled. Implements
// the supervisor service contract.
func (r *Reaper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.ReaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one reclaim pass. Exported for deterministic tests.
func (r *Reaper) Sweep(ctx context.Context) {
	reclaimed, err := r.jobs.ReclaimExpired(ctx, time.Now().UTC())
	if err != nil {
		logging.Error().Err(err).Msg("Claim sweep failed")
		return
	}

	for _, jobID := range reclaimed {
		metrics.JobsReclaimed.Inc()
		r.redispatch(ctx, jobID)
	}

	if depth, err := r.jobs.QueueDepth(ctx); err == nil {
		metrics.QueueDepth.Set(float64(depth))
	}
}

func (r *Reaper) redispatch(ctx context.Context, jobID string) {
	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		logging.Error().Err(err).Str("job_id", jobID).Msg("Reclaimed job vanished")
		return
	}

	// Attempts incremented on each claim, so an expired claim that spent
	// the budget is terminal here rather than looping through the queue.
	if job.Attempts >= r.cfg.MaxAttempts {
		if err := r.jobs.Fail(ctx, jobID, ReasonAttemptsExhausted); err != nil {
			logging.Error().Err(err).Str("job_id", jobID).Msg("Failed to fail exhausted job")
			return
		}
		metrics.JobsCompleted.WithLabelValues(string(models.JobFailed)).Inc()
		if r.completions != nil {
			event := eventbus.RecognitionCompletedEvent{
				JobID:         jobID,
				UserID:        job.UserID,
				Status:        models.JobFailed,
				FailureReason: ReasonAttemptsExhausted,
				CompletedAt:   time.Now().UTC(),
			}
			if err := r.completions.PublishCompleted(ctx, event); err != nil {
				logging.Warn().Err(err).Str("job_id", jobID).Msg("Failed to announce job failure")
			}
		}
		logging.Warn().
			Str("job_id", jobID).
			Int("attempts", job.Attempts).
			Msg("Job failed after exhausting attempts")
		return
	}

	if err := r.bus.PublishJobQueued(ctx, job); err != nil {
		// The job stays queued; the next sweep or a manual resubmit can
		// still pick it up.
		logging.Error().Err(err).Str("job_id", jobID).Msg("Failed to redispatch reclaimed job")
		return
	}
	logging.Info().
		Str("job_id", jobID).
		Int("attempts", job.Attempts).
		Msg("Reclaimed expired claim")
}
