// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package resolver

import (
	"strings"
)

// Lexicon maps raw model labels onto canonical ingredient identities.
// Injected so tests run against fixed tables and localization can swap
// the table without touching resolution logic.
type Lexicon interface {
	// Canonicalize normalizes a raw label and returns the canonical
	// ingredient ID and display name. ok is false for labels that
	// normalize to nothing (empty after modifier stripping).
	Canonicalize(label string) (ingredientID, canonicalName string, ok bool)
}

// StaticLexicon is a table-driven Lexicon: a modifier stop-list and a
// synonym map. Unknown labels become their own canonical identity after
// normalization, so the resolver never drops an ingredient just because
// the table has no entry for it.
type StaticLexicon struct {
	modifiers map[string]struct{}
	synonyms  map[string]string
}

// NewStaticLexicon builds a lexicon from a modifier stop-list and a
// synonym table keyed by normalized label.
func NewStaticLexicon(modifiers []string, synonyms map[string]string) *StaticLexicon {
	mods := make(map[string]struct{}, len(modifiers))
	for _, m := range modifiers {
		mods[strings.ToLower(m)] = struct{}{}
	}
	syns := make(map[string]string, len(synonyms))
	for k, v := range synonyms {
		syns[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &StaticLexicon{modifiers: mods, synonyms: syns}
}

// DefaultLexicon returns the built-in English table: common produce
// modifiers and a small synonym set covering frequent model labels.
func DefaultLexicon() *StaticLexicon {
	return NewStaticLexicon(
		[]string{"fresh", "organic", "ripe", "raw", "whole", "sliced", "diced", "chopped", "frozen", "canned"},
		map[string]string{
			"roma tomato":    "tomato",
			"cherry tomato":  "tomato",
			"plum tomato":    "tomato",
			"scallion":       "green onion",
			"spring onion":   "green onion",
			"coriander":      "cilantro",
			"aubergine":      "eggplant",
			"courgette":      "zucchini",
			"capsicum":       "bell pepper",
			"garbanzo beans": "chickpeas",
		},
	)
}

// Canonicalize implements Lexicon.
func (l *StaticLexicon) Canonicalize(label string) (string, string, bool) {
	name := l.normalize(label)
	if name == "" {
		return "", "", false
	}
	if canonical, ok := l.synonyms[name]; ok {
		name = canonical
	}
	return ingredientIDFor(name), name, true
}

// normalize case-folds the label, strips modifier words, and collapses
// whitespace.
func (l *StaticLexicon) normalize(label string) string {
	fields := strings.Fields(strings.ToLower(label))
	kept := fields[:0]
	for _, f := range fields {
		if _, isModifier := l.modifiers[f]; isModifier {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// ingredientIDFor derives a stable ingredient ID from a canonical name.
func ingredientIDFor(canonicalName string) string {
	return "ing-" + strings.ReplaceAll(canonicalName, " ", "-")
}
