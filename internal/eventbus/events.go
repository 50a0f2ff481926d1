// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package eventbus

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/pantrio/internal/models"
)

// Topics carried by the bus.
const (
	// TopicJobQueued dispatches recognition jobs to the worker pool.
	TopicJobQueued = "recognition.job.queued"

	// TopicRecognitionCompleted announces terminal job outcomes for
	// notification fan-out.
	TopicRecognitionCompleted = "recognition.job.completed"

	// TopicPoison receives messages that exhausted handler retries.
	TopicPoison = "recognition.poison"
)

// Message metadata keys.
const (
	MetaJobID  = "job_id"
	MetaUserID = "user_id"
)

// JobQueuedEvent signals that a job record exists and is claimable. The
// durable job state lives in the store; the event is only the dispatch
// trigger.
type JobQueuedEvent struct {
	JobID    string    `json:"job_id"`
	UserID   string    `json:"user_id"`
	QueuedAt time.Time `json:"queued_at"`
}

// RecognitionCompletedEvent announces a terminal job outcome along with
// the reconciliation report for completed jobs.
type RecognitionCompletedEvent struct {
	JobID         string                       `json:"job_id"`
	UserID        string                       `json:"user_id"`
	Status        models.JobStatus             `json:"status"`
	FailureReason string                       `json:"failure_reason,omitempty"`
	Report        *models.ReconciliationReport `json:"report,omitempty"`
	CompletedAt   time.Time                    `json:"completed_at"`
}

// NewJobQueuedMessage builds the dispatch message for a queued job.
func NewJobQueuedMessage(job *models.RecognitionJob) (*message.Message, error) {
	return newEventMessage(JobQueuedEvent{
		JobID:    job.JobID,
		UserID:   job.UserID,
		QueuedAt: job.SubmittedAt,
	}, job.JobID, job.UserID)
}

// NewCompletedMessage builds the completion announcement message.
func NewCompletedMessage(event RecognitionCompletedEvent) (*message.Message, error) {
	return newEventMessage(event, event.JobID, event.UserID)
}

func newEventMessage(payload interface{}, jobID, userID string) (*message.Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(MetaJobID, jobID)
	msg.Metadata.Set(MetaUserID, userID)
	return msg, nil
}

// DecodeJobQueued parses a dispatch message payload.
func DecodeJobQueued(msg *message.Message) (*JobQueuedEvent, error) {
	var event JobQueuedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("decode job queued event: %w", err)
	}
	return &event, nil
}

// DecodeCompleted parses a completion announcement payload.
func DecodeCompleted(msg *message.Message) (*RecognitionCompletedEvent, error) {
	var event RecognitionCompletedEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return nil, fmt.Errorf("decode completion event: %w", err)
	}
	return &event, nil
}
