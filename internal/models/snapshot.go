// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package models

import "time"

// SnapshotEntry aggregates a user's holdings of one ingredient across
// storage locations.
type SnapshotEntry struct {
	IngredientID   string    `json:"ingredient_id"`
	Quantity       float64   `json:"quantity"`
	Unit           string    `json:"unit"`
	EarliestExpiry time.Time `json:"earliest_expiry"`
}

// PantrySnapshot is an immutable view of a user's pantry taken in a single
// read transaction. The matcher scores an entire request against one
// snapshot so concurrent reconciler writes cannot skew a ranking mid-scan.
type PantrySnapshot struct {
	UserID  string                   `json:"user_id"`
	TakenAt time.Time                `json:"taken_at"`
	Items   map[string]SnapshotEntry `json:"items"`
}

// Quantity returns the held quantity of an ingredient, zero when absent.
func (s *PantrySnapshot) Quantity(ingredientID string) float64 {
	if e, ok := s.Items[ingredientID]; ok {
		return e.Quantity
	}
	return 0
}

// Has reports whether any quantity of the ingredient is held.
func (s *PantrySnapshot) Has(ingredientID string) bool {
	return s.Quantity(ingredientID) > 0
}
