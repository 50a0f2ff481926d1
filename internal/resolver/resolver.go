// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package resolver collapses raw recognition candidates into a canonical,
// deduplicated set of ingredient identities.
package resolver

import (
	"sort"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/metrics"
	"github.com/tomtom215/pantrio/internal/models"
)

// Resolver turns model output into resolved ingredients. Stateless and
// deterministic: identical candidate sets always produce identical output,
// so it is safe on any worker without shared state.
type Resolver struct {
	lexicon Lexicon
	cfg     config.ResolverConfig
}

// New creates a resolver with the given lexicon and thresholds.
func New(lexicon Lexicon, cfg config.ResolverConfig) *Resolver {
	return &Resolver{lexicon: lexicon, cfg: cfg}
}

// candidateGroup is the best candidate seen for one canonical identity.
type candidateGroup struct {
	ingredientID  string
	canonicalName string
	confidence    float64
	region        *models.BoundingRegion
}

// Resolve groups candidates by canonical identity keeping the maximum
// confidence per group, drops groups below the confidence threshold, and
// suppresses spatially overlapping identities so one physical object never
// yields two pantry entries. Output is sorted by descending confidence,
// ties broken lexicographically by canonical name.
func (r *Resolver) Resolve(jobID string, candidates []models.RecognitionCandidate) []models.ResolvedIngredient {
	groups := make(map[string]*candidateGroup)
	for _, c := range candidates {
		id, name, ok := r.lexicon.Canonicalize(c.Label)
		if !ok {
			metrics.CandidatesDropped.WithLabelValues("unresolvable").Inc()
			continue
		}

		g, exists := groups[id]
		if !exists {
			groups[id] = &candidateGroup{
				ingredientID:  id,
				canonicalName: name,
				confidence:    c.Confidence,
				region:        c.Region,
			}
			continue
		}
		if c.Confidence > g.confidence {
			g.confidence = c.Confidence
			g.region = c.Region
		}
	}

	ordered := make([]*candidateGroup, 0, len(groups))
	for _, g := range groups {
		if g.confidence < r.cfg.ConfidenceThreshold {
			metrics.CandidatesDropped.WithLabelValues("below_threshold").Inc()
			continue
		}
		ordered = append(ordered, g)
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].confidence != ordered[j].confidence {
			return ordered[i].confidence > ordered[j].confidence
		}
		return ordered[i].canonicalName < ordered[j].canonicalName
	})

	// Spatial mutual exclusion: walking in descending confidence order,
	// an identity overlapping an already-kept region loses.
	kept := ordered[:0]
	for _, g := range ordered {
		if overlapsAny(g, kept, r.cfg.OverlapThreshold) {
			metrics.CandidatesDropped.WithLabelValues("spatial_overlap").Inc()
			logging.Debug().
				Str("job_id", jobID).
				Str("ingredient", g.canonicalName).
				Float64("confidence", g.confidence).
				Msg("Dropped overlapping identity")
			continue
		}
		kept = append(kept, g)
	}

	resolved := make([]models.ResolvedIngredient, 0, len(kept))
	for _, g := range kept {
		resolved = append(resolved, models.ResolvedIngredient{
			IngredientID:  g.ingredientID,
			CanonicalName: g.canonicalName,
			Confidence:    g.confidence,
			SourceJobID:   jobID,
		})
	}
	metrics.CandidatesResolved.Add(float64(len(resolved)))
	return resolved
}

func overlapsAny(g *candidateGroup, kept []*candidateGroup, threshold float64) bool {
	if g.region == nil {
		return false
	}
	for _, k := range kept {
		if k.region == nil {
			continue
		}
		if g.region.IntersectionOverUnion(*k.region) >= threshold {
			return true
		}
	}
	return false
}
