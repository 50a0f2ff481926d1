// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/pantrio/internal/models"
)

const (
	jobKeyPrefix     = "job:"
	appliedKeyPrefix = "applied:"

	// appliedMarkerTTL bounds how long reconciliation dedupe markers are
	// kept. Redeliveries arrive within the queue's retry window, so a day
	// is a generous margin.
	appliedMarkerTTL = 24 * time.Hour
)

// JobStore persists RecognitionJob records and enforces the claim protocol:
// a job transitions Queued -> Processing via an atomic compare-and-set, and
// an expired claim makes the job reclaimable.
type JobStore struct {
	db *DB
}

// NewJobStore creates a job store backed by the shared database.
func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

// Create persists a new job record. The job must be in the queued state.
func (s *JobStore) Create(ctx context.Context, job *models.RecognitionJob) error {
	if job.Status != models.JobQueued {
		return fmt.Errorf("create job %s: status must be queued, got %s", job.JobID, job.Status)
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return s.db.badger.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(jobKeyPrefix+job.JobID), data)
	})
}

// Get retrieves a job by ID.
func (s *JobStore) Get(ctx context.Context, jobID string) (*models.RecognitionJob, error) {
	var job models.RecognitionJob
	err := s.db.badger.View(func(txn *badger.Txn) error {
		return readJSON(txn, jobKeyPrefix+jobID, &job)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Claim atomically transitions a queued job to processing and stamps the
// visibility window. Exactly one concurrent caller wins; losers receive
// ErrJobNotClaimable. The attempt counter increments on every claim.
func (s *JobStore) Claim(ctx context.Context, jobID string, visibility time.Duration) (*models.RecognitionJob, error) {
	var claimed models.RecognitionJob

	err := s.db.badger.Update(func(txn *badger.Txn) error {
		var job models.RecognitionJob
		if err := readJSON(txn, jobKeyPrefix+jobID, &job); err != nil {
			return err
		}
		if job.Status != models.JobQueued {
			return ErrJobNotClaimable
		}

		now := time.Now().UTC()
		expires := now.Add(visibility)
		job.Status = models.JobProcessing
		job.Attempts++
		job.ClaimedAt = &now
		job.ClaimExpiresAt = &expires

		if err := writeJSON(txn, jobKeyPrefix+jobID, &job); err != nil {
			return err
		}
		claimed = job
		return nil
	})

	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return nil, ErrJobNotFound
	case errors.Is(err, badger.ErrConflict):
		// Another worker's transaction committed first.
		return nil, ErrJobNotClaimable
	case err != nil:
		return nil, err
	}
	return &claimed, nil
}

// Complete transitions a processing job to completed.
func (s *JobStore) Complete(ctx context.Context, jobID string) error {
	return s.finish(jobID, models.JobCompleted, "")
}

// Fail transitions a job to failed with a reason. Valid from both the
// processing state (worker gave up) and the queued state (retry budget
// exhausted before re-claim).
func (s *JobStore) Fail(ctx context.Context, jobID, reason string) error {
	return s.finish(jobID, models.JobFailed, reason)
}

func (s *JobStore) finish(jobID string, status models.JobStatus, reason string) error {
	err := s.db.badger.Update(func(txn *badger.Txn) error {
		var job models.RecognitionJob
		if err := readJSON(txn, jobKeyPrefix+jobID, &job); err != nil {
			return err
		}
		if job.Status.IsTerminal() {
			// Terminal transitions are one-way; a duplicate completion
			// from a redelivered message is a no-op.
			return nil
		}

		now := time.Now().UTC()
		job.Status = status
		job.FailureReason = reason
		job.CompletedAt = &now
		job.ClaimedAt = nil
		job.ClaimExpiresAt = nil

		return writeJSON(txn, jobKeyPrefix+jobID, &job)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrJobNotFound
	}
	return err
}

// Release returns a processing job to the queued state so it can be
// claimed again, keeping the attempt count. Releasing a job that is not
// processing is a no-op.
func (s *JobStore) Release(ctx context.Context, jobID string) error {
	err := s.db.badger.Update(func(txn *badger.Txn) error {
		var job models.RecognitionJob
		if err := readJSON(txn, jobKeyPrefix+jobID, &job); err != nil {
			return err
		}
		if job.Status != models.JobProcessing {
			return nil
		}
		job.Status = models.JobQueued
		job.ClaimedAt = nil
		job.ClaimExpiresAt = nil
		return writeJSON(txn, jobKeyPrefix+jobID, &job)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrJobNotFound
	}
	return err
}

// Cancel removes a job that has not been claimed yet. A processing or
// terminal job cannot be cancelled.
func (s *JobStore) Cancel(ctx context.Context, jobID string) error {
	err := s.db.badger.Update(func(txn *badger.Txn) error {
		var job models.RecognitionJob
		if err := readJSON(txn, jobKeyPrefix+jobID, &job); err != nil {
			return err
		}
		if job.Status != models.JobQueued {
			return ErrJobNotCancellable
		}
		return txn.Delete([]byte(jobKeyPrefix + jobID))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrJobNotFound
	}
	return err
}

// ReclaimExpired scans processing jobs whose claim expired before now and
// returns them to the queued state. It returns the IDs of reclaimed jobs
// so the caller can republish dispatch messages.
func (s *JobStore) ReclaimExpired(ctx context.Context, now time.Time) ([]string, error) {
	var reclaimed []string

	err := s.db.badger.Update(func(txn *badger.Txn) error {
		reclaimed = reclaimed[:0]

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var job models.RecognitionJob
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				return err
			}

			if job.Status != models.JobProcessing || job.ClaimExpiresAt == nil {
				continue
			}
			if job.ClaimExpiresAt.After(now) {
				continue
			}

			job.Status = models.JobQueued
			job.ClaimedAt = nil
			job.ClaimExpiresAt = nil
			if err := writeJSON(txn, jobKeyPrefix+job.JobID, &job); err != nil {
				return err
			}
			reclaimed = append(reclaimed, job.JobID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reclaimed, nil
}

// MarkApplied records that a job's resolved ingredients were reconciled
// into the pantry. Used to dedupe redelivered completions.
func (s *JobStore) MarkApplied(ctx context.Context, jobID string) error {
	return s.db.badger.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(appliedKeyPrefix+jobID), []byte{1}).
			WithTTL(appliedMarkerTTL)
		return txn.SetEntry(entry)
	})
}

// WasApplied reports whether a job's results were already reconciled.
func (s *JobStore) WasApplied(ctx context.Context, jobID string) (bool, error) {
	err := s.db.badger.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(appliedKeyPrefix + jobID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// QueueDepth counts jobs currently in the queued state.
func (s *JobStore) QueueDepth(ctx context.Context) (int, error) {
	depth := 0
	err := s.db.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(jobKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var job models.RecognitionJob
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &job)
			}); err != nil {
				return err
			}
			if job.Status == models.JobQueued {
				depth++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return depth, nil
}

// readJSON loads and unmarshals a value within a transaction.
func readJSON(txn *badger.Txn, key string, v interface{}) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

// writeJSON marshals and stores a value within a transaction.
func writeJSON(txn *badger.Txn, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}
