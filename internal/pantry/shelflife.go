// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package pantry

import "time"

// ShelfLife supplies the default expiration window for an ingredient.
// Injected so tests run against fixed tables and the catalog can be
// swapped without touching reconciliation logic.
type ShelfLife interface {
	For(ingredientID string) time.Duration
}

// StaticShelfLife is a table-driven ShelfLife with a fallback for
// ingredients missing from the table.
type StaticShelfLife struct {
	table    map[string]time.Duration
	fallback time.Duration
}

// NewStaticShelfLife builds a shelf-life lookup from a table and fallback.
func NewStaticShelfLife(table map[string]time.Duration, fallback time.Duration) *StaticShelfLife {
	return &StaticShelfLife{table: table, fallback: fallback}
}

// DefaultShelfLife returns the built-in category table. Values are
// deliberately conservative; a too-short default only surfaces items in
// the expiring view early, a too-long one hides real waste.
func DefaultShelfLife() *StaticShelfLife {
	day := 24 * time.Hour
	return NewStaticShelfLife(map[string]time.Duration{
		"ing-milk":        7 * day,
		"ing-egg":         21 * day,
		"ing-tomato":      6 * day,
		"ing-basil":       4 * day,
		"ing-cilantro":    4 * day,
		"ing-green-onion": 7 * day,
		"ing-bell-pepper": 10 * day,
		"ing-zucchini":    7 * day,
		"ing-eggplant":    7 * day,
		"ing-chicken":     2 * day,
		"ing-ground-beef": 2 * day,
		"ing-fish":        2 * day,
		"ing-bread":       5 * day,
		"ing-flour":       180 * day,
		"ing-rice":        365 * day,
		"ing-pasta":       365 * day,
		"ing-chickpeas":   365 * day,
		"ing-onion":       30 * day,
		"ing-garlic":      60 * day,
		"ing-potato":      21 * day,
	}, 14*day)
}

// For implements ShelfLife.
func (s *StaticShelfLife) For(ingredientID string) time.Duration {
	if d, ok := s.table[ingredientID]; ok {
		return d
	}
	return s.fallback
}
