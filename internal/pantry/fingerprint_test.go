// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package pantry

import (
	"testing"

	"github.com/tomtom215/pantrio/internal/models"
)

func snapshotOf(items map[string]float64) *models.PantrySnapshot {
	snap := &models.PantrySnapshot{
		UserID: "user-1",
		Items:  make(map[string]models.SnapshotEntry, len(items)),
	}
	for id, qty := range items {
		snap.Items[id] = models.SnapshotEntry{IngredientID: id, Quantity: qty}
	}
	return snap
}

func TestFingerprint_Deterministic(t *testing.T) {
	snap := snapshotOf(map[string]float64{"ing-tomato": 3, "ing-basil": 1, "ing-egg": 6})

	first := Fingerprint(snap, 1)
	for i := 0; i < 10; i++ {
		if got := Fingerprint(snap, 1); got != first {
			t.Fatalf("fingerprint changed across runs: %s != %s", got, first)
		}
	}
}

func TestFingerprint_SensitiveToContents(t *testing.T) {
	base := Fingerprint(snapshotOf(map[string]float64{"ing-tomato": 3}), 1)

	tests := []struct {
		name  string
		items map[string]float64
	}{
		{"added ingredient", map[string]float64{"ing-tomato": 3, "ing-basil": 1}},
		{"removed ingredient", map[string]float64{}},
		{"bucket change", map[string]float64{"ing-tomato": 4}},
	}
	for _, tt := range tests {
		if got := Fingerprint(snapshotOf(tt.items), 1); got == base {
			t.Errorf("%s: fingerprint did not change", tt.name)
		}
	}
}

func TestFingerprint_BucketAbsorbsJitter(t *testing.T) {
	a := Fingerprint(snapshotOf(map[string]float64{"ing-flour": 500}), 100)
	b := Fingerprint(snapshotOf(map[string]float64{"ing-flour": 580}), 100)
	c := Fingerprint(snapshotOf(map[string]float64{"ing-flour": 610}), 100)

	if a != b {
		t.Error("sub-bucket change must not alter the fingerprint")
	}
	if a == c {
		t.Error("crossing a bucket boundary must alter the fingerprint")
	}
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	// Maps iterate in random order; the fingerprint must not depend on it.
	items := map[string]float64{
		"ing-a": 1, "ing-b": 2, "ing-c": 3, "ing-d": 4,
		"ing-e": 5, "ing-f": 6, "ing-g": 7, "ing-h": 8,
	}
	first := Fingerprint(snapshotOf(items), 1)
	for i := 0; i < 50; i++ {
		if got := Fingerprint(snapshotOf(items), 1); got != first {
			t.Fatal("fingerprint depends on map iteration order")
		}
	}
}
