// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package matcher scores and ranks the recipe corpus against a pantry
// snapshot.
package matcher

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/metrics"
	"github.com/tomtom215/pantrio/internal/models"
	"github.com/tomtom215/pantrio/internal/store"
)

// Options narrows one match request. Zero values fall back to configured
// defaults.
type Options struct {
	MinScore float64
	Limit    int
}

// Engine computes ranked recipe matches. Stateless between calls: each
// computation reads one consistent pantry snapshot taken at call start,
// so it is safe to run concurrently with reconciler writes.
type Engine struct {
	recipes *store.RecipeStore
	pantry  *store.PantryStore
	cfg     config.MatcherConfig
}

// NewEngine creates a matcher over the recipe corpus and pantry store.
func NewEngine(recipes *store.RecipeStore, pantry *store.PantryStore, cfg config.MatcherConfig) *Engine {
	return &Engine{recipes: recipes, pantry: pantry, cfg: cfg}
}

// Match takes a fresh pantry snapshot for the user and ranks the corpus
// against it.
func (e *Engine) Match(ctx context.Context, userID string, opts Options) ([]models.MatchResult, error) {
	snap, err := e.pantry.Snapshot(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("pantry snapshot for %s: %w", userID, err)
	}
	return e.MatchSnapshot(ctx, snap, opts)
}

// MatchSnapshot ranks the corpus against an already-taken snapshot. The
// snapshot is never refreshed mid-scan, so one call yields one consistent
// ranking.
func (e *Engine) MatchSnapshot(ctx context.Context, snap *models.PantrySnapshot, opts Options) ([]models.MatchResult, error) {
	start := time.Now()
	opts = e.normalize(opts)
	now := time.Now().UTC()

	type scored struct {
		result  models.MatchResult
		missing int
		addedAt time.Time
	}

	var results []scored
	err := e.recipes.ForEach(ctx, func(recipe *models.Recipe) error {
		result := e.score(recipe, snap, now)
		if result.Score < opts.MinScore {
			return nil
		}
		results = append(results, scored{
			result:  result,
			missing: len(result.MissingIngredients),
			addedAt: recipe.AddedAt,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan recipe corpus: %w", err)
	}

	// Rank: descending score, then fewer missing ingredients, then most
	// recently added recipe.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].result.Score != results[j].result.Score {
			return results[i].result.Score > results[j].result.Score
		}
		if results[i].missing != results[j].missing {
			return results[i].missing < results[j].missing
		}
		return results[i].addedAt.After(results[j].addedAt)
	})

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	ranked := make([]models.MatchResult, 0, len(results))
	for _, s := range results {
		ranked = append(ranked, s.result)
	}

	metrics.MatchComputeDuration.Observe(time.Since(start).Seconds())
	logging.Debug().
		Str("user_id", snap.UserID).
		Int("results", len(ranked)).
		Dur("elapsed", time.Since(start)).
		Msg("Computed recipe matches")
	return ranked, nil
}

// score computes one recipe's match against the snapshot. Each required
// ingredient contributes up to one point of credit: full when the pantry
// quantity covers the requirement, proportional otherwise, zero when
// absent. Matched ingredients expiring within the horizon add a small
// bonus so soon-to-expire stock is consumed first.
func (e *Engine) score(recipe *models.Recipe, snap *models.PantrySnapshot, now time.Time) models.MatchResult {
	result := models.MatchResult{
		RecipeID: recipe.RecipeID,
		Name:     recipe.Name,
	}
	if len(recipe.RequiredIngredients) == 0 {
		return result
	}

	credit := 0.0
	bonus := 0.0
	for _, req := range recipe.RequiredIngredients {
		have := snap.Quantity(req.IngredientID)
		if have <= 0 {
			result.MissingIngredients = append(result.MissingIngredients, req.IngredientID)
			continue
		}
		result.MatchedIngredients = append(result.MatchedIngredients, req.IngredientID)

		if req.Quantity <= 0 || have >= req.Quantity {
			credit++
		} else {
			credit += have / req.Quantity
		}

		bonus += e.expiryBonus(snap.Items[req.IngredientID], now)
	}

	result.Score = credit/float64(len(recipe.RequiredIngredients)) + bonus
	return result
}

// expiryBonus scales with proximity to expiry inside the horizon: an item
// expiring now contributes the full bonus weight, one at the horizon edge
// contributes nothing.
func (e *Engine) expiryBonus(entry models.SnapshotEntry, now time.Time) float64 {
	if e.cfg.ExpiryHorizon <= 0 || entry.EarliestExpiry.IsZero() {
		return 0
	}
	remaining := entry.EarliestExpiry.Sub(now)
	if remaining < 0 || remaining >= e.cfg.ExpiryHorizon {
		return 0
	}
	proximity := 1 - float64(remaining)/float64(e.cfg.ExpiryHorizon)
	return e.cfg.ExpiryBonusWeight * proximity
}

func (e *Engine) normalize(opts Options) Options {
	if opts.MinScore <= 0 {
		opts.MinScore = e.cfg.MinScore
	}
	if opts.Limit <= 0 {
		opts.Limit = e.cfg.DefaultLimit
	}
	if e.cfg.MaxLimit > 0 && opts.Limit > e.cfg.MaxLimit {
		opts.Limit = e.cfg.MaxLimit
	}
	return opts
}
