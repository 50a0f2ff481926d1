// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/pantrio/internal/cache"
	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/models"
)

func newChannelBus(t *testing.T) *Bus {
	t.Helper()

	bus, err := New(config.NATSConfig{Enabled: false})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := bus.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return bus
}

func TestBus_JobQueuedRoundtrip(t *testing.T) {
	bus := newChannelBus(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := bus.Subscriber().Subscribe(ctx, TopicJobQueued)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	job := models.NewRecognitionJob("user-1", "blobs/img-1")
	if err := bus.PublishJobQueued(ctx, job); err != nil {
		t.Fatalf("PublishJobQueued() error = %v", err)
	}

	select {
	case msg := <-messages:
		event, err := DecodeJobQueued(msg)
		if err != nil {
			t.Fatalf("DecodeJobQueued() error = %v", err)
		}
		if event.JobID != job.JobID {
			t.Errorf("JobID = %q, want %q", event.JobID, job.JobID)
		}
		if event.UserID != "user-1" {
			t.Errorf("UserID = %q, want %q", event.UserID, "user-1")
		}
		if got := msg.Metadata.Get(MetaJobID); got != job.JobID {
			t.Errorf("metadata job_id = %q, want %q", got, job.JobID)
		}
		if got := msg.Metadata.Get(MetaUserID); got != "user-1" {
			t.Errorf("metadata user_id = %q, want %q", got, "user-1")
		}
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for dispatch message")
	}
}

func TestBus_CompletedRoundtrip(t *testing.T) {
	bus := newChannelBus(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, err := bus.Subscriber().Subscribe(ctx, TopicRecognitionCompleted)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	report := &models.ReconciliationReport{
		JobID:  "job-42",
		UserID: "user-9",
		Entries: []models.ReconciliationEntry{
			{IngredientID: "ing-tomato", CanonicalName: "tomato", Action: models.ActionCreated, Confidence: 0.92},
		},
	}
	sent := RecognitionCompletedEvent{
		JobID:       "job-42",
		UserID:      "user-9",
		Status:      models.JobCompleted,
		Report:      report,
		CompletedAt: time.Now().UTC(),
	}
	if err := bus.PublishCompleted(ctx, sent); err != nil {
		t.Fatalf("PublishCompleted() error = %v", err)
	}

	select {
	case msg := <-messages:
		event, err := DecodeCompleted(msg)
		if err != nil {
			t.Fatalf("DecodeCompleted() error = %v", err)
		}
		if event.Status != models.JobCompleted {
			t.Errorf("Status = %q, want %q", event.Status, models.JobCompleted)
		}
		if event.Report == nil {
			t.Fatal("Report = nil, want reconciliation report")
		}
		if len(event.Report.Entries) != 1 || event.Report.Entries[0].IngredientID != "ing-tomato" {
			t.Errorf("Report.Entries = %+v, want one ing-tomato entry", event.Report.Entries)
		}
		msg.Ack()
	case <-ctx.Done():
		t.Fatal("timed out waiting for completion message")
	}
}

func TestDecodeJobQueued_MalformedPayload(t *testing.T) {
	msg, err := NewJobQueuedMessage(models.NewRecognitionJob("u", "ref"))
	if err != nil {
		t.Fatalf("NewJobQueuedMessage() error = %v", err)
	}
	msg.Payload = []byte("{not json")

	if _, err := DecodeJobQueued(msg); err == nil {
		t.Error("DecodeJobQueued() error = nil, want parse error")
	}
}

func TestNewRouter(t *testing.T) {
	bus := newChannelBus(t)

	router, err := NewRouter(DefaultRouterConfig(), bus)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}
	if router == nil {
		t.Fatal("NewRouter() returned nil router")
	}
	if err := router.Close(); err != nil {
		t.Errorf("router.Close() error = %v", err)
	}
}

func TestDedupRepository(t *testing.T) {
	bus := newChannelBus(t)

	cfg := DefaultRouterConfig()
	cfg.DedupTTL = time.Minute
	if _, err := NewRouter(cfg, bus); err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	repo := &dedupRepository{dedup: cache.NewDeduplicator(16, time.Minute)}
	ctx := context.Background()

	dup, err := repo.IsDuplicate(ctx, "msg-1")
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if dup {
		t.Error("first sighting reported as duplicate")
	}

	dup, err = repo.IsDuplicate(ctx, "msg-1")
	if err != nil {
		t.Fatalf("IsDuplicate() error = %v", err)
	}
	if !dup {
		t.Error("second sighting not reported as duplicate")
	}
}
