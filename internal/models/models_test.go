// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package models

import (
	"math"
	"testing"
)

func TestJobStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobQueued, false},
		{JobProcessing, false},
		{JobCompleted, true},
		{JobFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestNewRecognitionJob(t *testing.T) {
	job := NewRecognitionJob("user-1", "blobs/abc")

	if job.JobID == "" {
		t.Error("expected non-empty job ID")
	}
	if job.Status != JobQueued {
		t.Errorf("expected status queued, got %s", job.Status)
	}
	if job.SubmittedAt.IsZero() {
		t.Error("expected submitted timestamp")
	}

	other := NewRecognitionJob("user-1", "blobs/abc")
	if other.JobID == job.JobID {
		t.Error("expected unique job IDs")
	}
}

func TestBoundingRegionIoU(t *testing.T) {
	tests := []struct {
		name     string
		a, b     BoundingRegion
		expected float64
	}{
		{
			name:     "identical regions",
			a:        BoundingRegion{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.5},
			b:        BoundingRegion{X: 0.1, Y: 0.1, Width: 0.5, Height: 0.5},
			expected: 1.0,
		},
		{
			name:     "disjoint regions",
			a:        BoundingRegion{X: 0, Y: 0, Width: 0.2, Height: 0.2},
			b:        BoundingRegion{X: 0.5, Y: 0.5, Width: 0.2, Height: 0.2},
			expected: 0.0,
		},
		{
			name: "half overlap",
			a:    BoundingRegion{X: 0, Y: 0, Width: 0.2, Height: 0.2},
			b:    BoundingRegion{X: 0.1, Y: 0, Width: 0.2, Height: 0.2},
			// intersection 0.1x0.2 = 0.02, union 0.08 - 0.02 = 0.06
			expected: 0.02 / 0.06,
		},
		{
			name:     "touching edges",
			a:        BoundingRegion{X: 0, Y: 0, Width: 0.2, Height: 0.2},
			b:        BoundingRegion{X: 0.2, Y: 0, Width: 0.2, Height: 0.2},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.IntersectionOverUnion(tt.b)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("IoU = %f, want %f", got, tt.expected)
			}
			// Symmetric
			rev := tt.b.IntersectionOverUnion(tt.a)
			if math.Abs(got-rev) > 1e-9 {
				t.Errorf("IoU not symmetric: %f vs %f", got, rev)
			}
		})
	}
}

func TestReconciliationReportCounts(t *testing.T) {
	report := &ReconciliationReport{
		Entries: []ReconciliationEntry{
			{IngredientID: "tomato", Action: ActionCreated},
			{IngredientID: "onion", Action: ActionIncremented},
			{IngredientID: "basil", Action: ActionPendingConfirmation},
			{IngredientID: "milk", Action: ActionFailed},
		},
	}

	if got := report.Applied(); got != 2 {
		t.Errorf("Applied() = %d, want 2", got)
	}
	if got := report.Pending(); got != 1 {
		t.Errorf("Pending() = %d, want 1", got)
	}
}
