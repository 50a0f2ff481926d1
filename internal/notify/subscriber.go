// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package notify

import (
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/pantrio/internal/eventbus"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/models"
)

// JobOutcomeData is the payload pushed for terminal job outcomes.
type JobOutcomeData struct {
	JobID         string                       `json:"job_id"`
	Status        string                       `json:"status"`
	FailureReason string                       `json:"failure_reason,omitempty"`
	Report        *models.ReconciliationReport `json:"report,omitempty"`
	CompletedAt   string                       `json:"completed_at"`
}

// HandleCompleted is the router handler for completion events. It never
// fails the message: a notification that cannot be delivered is dropped,
// the job record remains the source of truth.
func (h *Hub) HandleCompleted(msg *message.Message) error {
	event, err := eventbus.DecodeCompleted(msg)
	if err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).
			Msg("Undecodable completion event, dropping")
		return nil
	}

	messageType := MessageTypeJobCompleted
	if event.Status == models.JobFailed {
		messageType = MessageTypeJobFailed
	}

	h.Notify(event.UserID, messageType, JobOutcomeData{
		JobID:         event.JobID,
		Status:        string(event.Status),
		FailureReason: event.FailureReason,
		Report:        event.Report,
		CompletedAt:   timestamp(event.CompletedAt),
	})
	return nil
}
