// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package resolver

import (
	"reflect"
	"testing"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/models"
)

func testResolver() *Resolver {
	return New(DefaultLexicon(), config.ResolverConfig{
		ConfidenceThreshold: 0.6,
		OverlapThreshold:    0.5,
	})
}

func TestResolve_CaseFoldingKeepsMaxConfidence(t *testing.T) {
	r := testResolver()

	resolved := r.Resolve("job-1", []models.RecognitionCandidate{
		{Label: "tomato", Confidence: 0.9},
		{Label: "Tomato", Confidence: 0.4},
	})

	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved ingredient, got %d", len(resolved))
	}
	if resolved[0].IngredientID != "ing-tomato" {
		t.Errorf("expected ing-tomato, got %s", resolved[0].IngredientID)
	}
	if resolved[0].Confidence != 0.9 {
		t.Errorf("expected max confidence 0.9, got %v", resolved[0].Confidence)
	}
	if resolved[0].SourceJobID != "job-1" {
		t.Errorf("expected source job recorded, got %q", resolved[0].SourceJobID)
	}
}

func TestResolve_ModifiersAndSynonyms(t *testing.T) {
	r := testResolver()

	tests := []struct {
		label  string
		wantID string
	}{
		{"fresh organic basil", "ing-basil"},
		{"Roma Tomato", "ing-tomato"},
		{"sliced courgette", "ing-zucchini"},
		{"Spring Onion", "ing-green-onion"},
	}
	for _, tt := range tests {
		resolved := r.Resolve("job-1", []models.RecognitionCandidate{
			{Label: tt.label, Confidence: 0.9},
		})
		if len(resolved) != 1 {
			t.Errorf("%q: expected 1 resolved, got %d", tt.label, len(resolved))
			continue
		}
		if resolved[0].IngredientID != tt.wantID {
			t.Errorf("%q: expected %s, got %s", tt.label, tt.wantID, resolved[0].IngredientID)
		}
	}
}

func TestResolve_ThresholdFilter(t *testing.T) {
	r := testResolver()

	resolved := r.Resolve("job-1", []models.RecognitionCandidate{
		{Label: "tomato", Confidence: 0.59},
		{Label: "basil", Confidence: 0.6},
	})

	if len(resolved) != 1 {
		t.Fatalf("expected 1 resolved, got %d", len(resolved))
	}
	if resolved[0].IngredientID != "ing-basil" {
		t.Errorf("expected ing-basil to survive, got %s", resolved[0].IngredientID)
	}
}

func TestResolve_NoDuplicateIdentities(t *testing.T) {
	r := testResolver()

	resolved := r.Resolve("job-1", []models.RecognitionCandidate{
		{Label: "cherry tomato", Confidence: 0.8},
		{Label: "roma tomato", Confidence: 0.7},
		{Label: "Tomato", Confidence: 0.9},
		{Label: "basil", Confidence: 0.7},
	})

	seen := make(map[string]bool)
	for _, ri := range resolved {
		if seen[ri.IngredientID] {
			t.Errorf("duplicate identity %s in output", ri.IngredientID)
		}
		seen[ri.IngredientID] = true
	}
	if len(resolved) != 2 {
		t.Errorf("expected tomato+basil, got %d entries", len(resolved))
	}
}

func TestResolve_SpatialMutualExclusion(t *testing.T) {
	r := testResolver()
	region := &models.BoundingRegion{X: 10, Y: 10, Width: 50, Height: 50}
	near := &models.BoundingRegion{X: 12, Y: 12, Width: 50, Height: 50}
	elsewhere := &models.BoundingRegion{X: 200, Y: 200, Width: 40, Height: 40}

	resolved := r.Resolve("job-1", []models.RecognitionCandidate{
		{Label: "tomato", Confidence: 0.9, Region: region},
		{Label: "bell pepper", Confidence: 0.8, Region: near},
		{Label: "basil", Confidence: 0.7, Region: elsewhere},
	})

	ids := make([]string, 0, len(resolved))
	for _, ri := range resolved {
		ids = append(ids, ri.IngredientID)
	}
	want := []string{"ing-tomato", "ing-basil"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

func TestResolve_NoRegionNeverExcluded(t *testing.T) {
	r := testResolver()
	region := &models.BoundingRegion{X: 0, Y: 0, Width: 100, Height: 100}

	resolved := r.Resolve("job-1", []models.RecognitionCandidate{
		{Label: "tomato", Confidence: 0.9, Region: region},
		{Label: "basil", Confidence: 0.8},
	})
	if len(resolved) != 2 {
		t.Errorf("candidate without region must not be spatially excluded, got %d", len(resolved))
	}
}

func TestResolve_DeterministicOrdering(t *testing.T) {
	r := testResolver()
	candidates := []models.RecognitionCandidate{
		{Label: "onion", Confidence: 0.7},
		{Label: "basil", Confidence: 0.7},
		{Label: "tomato", Confidence: 0.9},
	}

	first := r.Resolve("job-1", candidates)
	ids := make([]string, 0, len(first))
	for _, ri := range first {
		ids = append(ids, ri.IngredientID)
	}
	want := []string{"ing-tomato", "ing-basil", "ing-onion"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}

	// Same input, same output on every run.
	for i := 0; i < 20; i++ {
		again := r.Resolve("job-1", candidates)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("non-deterministic output on run %d", i)
		}
	}
}

func TestResolve_EmptyAndUnresolvable(t *testing.T) {
	r := testResolver()

	if got := r.Resolve("job-1", nil); len(got) != 0 {
		t.Errorf("expected empty output for no candidates, got %v", got)
	}
	if got := r.Resolve("job-1", []models.RecognitionCandidate{
		{Label: "fresh organic", Confidence: 0.9},
	}); len(got) != 0 {
		t.Errorf("modifier-only label must resolve to nothing, got %v", got)
	}
}

func TestStaticLexicon_Canonicalize(t *testing.T) {
	lex := DefaultLexicon()

	tests := []struct {
		label    string
		wantID   string
		wantName string
		wantOK   bool
	}{
		{"Tomato", "ing-tomato", "tomato", true},
		{"  FRESH   Basil ", "ing-basil", "basil", true},
		{"capsicum", "ing-bell-pepper", "bell pepper", true},
		{"organic", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		id, name, ok := lex.Canonicalize(tt.label)
		if ok != tt.wantOK {
			t.Errorf("Canonicalize(%q) ok = %v, want %v", tt.label, ok, tt.wantOK)
			continue
		}
		if id != tt.wantID || name != tt.wantName {
			t.Errorf("Canonicalize(%q) = %q, %q; want %q, %q", tt.label, id, name, tt.wantID, tt.wantName)
		}
	}
}
