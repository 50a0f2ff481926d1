// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package matcher

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/models"
	"github.com/tomtom215/pantrio/internal/store"
)

func testEngine(t *testing.T) (*Engine, *store.RecipeStore, *store.PantryStore) {
	t.Helper()
	db, err := store.Open(config.StorageConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open in-memory badger: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	recipes := store.NewRecipeStore(db)
	pantry := store.NewPantryStore(db)
	e := NewEngine(recipes, pantry, config.MatcherConfig{
		MinScore:          0.01,
		DefaultLimit:      20,
		MaxLimit:          100,
		ExpiryBonusWeight: 0.05,
		ExpiryHorizon:     72 * time.Hour,
	})
	return e, recipes, pantry
}

func putRecipe(t *testing.T, s *store.RecipeStore, id, name string, addedAt time.Time, reqs ...models.RecipeIngredient) {
	t.Helper()
	if err := s.Put(context.Background(), &models.Recipe{
		RecipeID:            id,
		Name:                name,
		RequiredIngredients: reqs,
		AddedAt:             addedAt,
	}); err != nil {
		t.Fatalf("Put recipe %s: %v", id, err)
	}
}

func stock(t *testing.T, p *store.PantryStore, userID, ingredientID string, qty float64, expiry time.Time) {
	t.Helper()
	if _, err := p.Increment(context.Background(), userID, ingredientID, "pantry", qty, "unit", expiry); err != nil {
		t.Fatalf("stock %s: %v", ingredientID, err)
	}
}

func TestMatch_PartialSufficiencyScore(t *testing.T) {
	ctx := context.Background()
	e, recipes, pantry := testEngine(t)
	far := time.Now().Add(30 * 24 * time.Hour)

	putRecipe(t, recipes, "r-pancakes", "Pancakes", time.Now(),
		models.RecipeIngredient{IngredientID: "ing-flour", Quantity: 500, Unit: "g"},
		models.RecipeIngredient{IngredientID: "ing-egg", Quantity: 2, Unit: "unit"},
		models.RecipeIngredient{IngredientID: "ing-milk", Quantity: 200, Unit: "ml"},
	)
	stock(t, pantry, "user-1", "ing-flour", 500, far)
	stock(t, pantry, "user-1", "ing-egg", 2, far)

	results, err := e.Match(ctx, "user-1", Options{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if math.Abs(r.Score-2.0/3.0) > 1e-9 {
		t.Errorf("expected score 2/3, got %v", r.Score)
	}
	if len(r.MissingIngredients) != 1 || r.MissingIngredients[0] != "ing-milk" {
		t.Errorf("expected milk missing, got %v", r.MissingIngredients)
	}
	if len(r.MatchedIngredients) != 2 {
		t.Errorf("expected 2 matched, got %v", r.MatchedIngredients)
	}
}

func TestMatch_QuantityPartialCredit(t *testing.T) {
	ctx := context.Background()
	e, recipes, pantry := testEngine(t)
	far := time.Now().Add(30 * 24 * time.Hour)

	putRecipe(t, recipes, "r-bread", "Bread", time.Now(),
		models.RecipeIngredient{IngredientID: "ing-flour", Quantity: 1000, Unit: "g"},
	)
	stock(t, pantry, "user-1", "ing-flour", 250, far)

	results, err := e.Match(ctx, "user-1", Options{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if math.Abs(results[0].Score-0.25) > 1e-9 {
		t.Errorf("expected proportional credit 0.25, got %v", results[0].Score)
	}
	if len(results[0].MissingIngredients) != 0 {
		t.Errorf("insufficient quantity is not missing: %v", results[0].MissingIngredients)
	}
}

func TestMatch_ScoreMonotonicInPresence(t *testing.T) {
	ctx := context.Background()
	e, recipes, pantry := testEngine(t)
	far := time.Now().Add(30 * 24 * time.Hour)

	putRecipe(t, recipes, "r-stir-fry", "Stir Fry", time.Now(),
		models.RecipeIngredient{IngredientID: "ing-a", Quantity: 1, Unit: "unit"},
		models.RecipeIngredient{IngredientID: "ing-b", Quantity: 1, Unit: "unit"},
		models.RecipeIngredient{IngredientID: "ing-c", Quantity: 1, Unit: "unit"},
		models.RecipeIngredient{IngredientID: "ing-d", Quantity: 1, Unit: "unit"},
	)

	prev := -1.0
	for _, ing := range []string{"ing-a", "ing-b", "ing-c", "ing-d"} {
		stock(t, pantry, "user-1", ing, 1, far)

		results, err := e.Match(ctx, "user-1", Options{MinScore: 0.001})
		if err != nil {
			t.Fatalf("Match: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %d", len(results))
		}
		if results[0].Score < prev {
			t.Errorf("score decreased after adding %s: %v < %v", ing, results[0].Score, prev)
		}
		prev = results[0].Score
	}
	if math.Abs(prev-1.0) > 0.06 {
		t.Errorf("full pantry should score ~1, got %v", prev)
	}
}

func TestMatch_RankingAndTieBreaks(t *testing.T) {
	ctx := context.Background()
	e, recipes, pantry := testEngine(t)
	far := time.Now().Add(30 * 24 * time.Hour)

	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	// Full match beats half match.
	putRecipe(t, recipes, "r-full", "Full", old,
		models.RecipeIngredient{IngredientID: "ing-egg", Quantity: 1, Unit: "unit"},
	)
	putRecipe(t, recipes, "r-half", "Half", old,
		models.RecipeIngredient{IngredientID: "ing-egg", Quantity: 1, Unit: "unit"},
		models.RecipeIngredient{IngredientID: "ing-milk", Quantity: 1, Unit: "l"},
	)
	// Same score as r-half but fewer missing: one present of two, none missing
	// is impossible at that score, so test recency instead on an exact tie.
	putRecipe(t, recipes, "r-half-recent", "Half Recent", recent,
		models.RecipeIngredient{IngredientID: "ing-egg", Quantity: 1, Unit: "unit"},
		models.RecipeIngredient{IngredientID: "ing-butter", Quantity: 1, Unit: "unit"},
	)
	stock(t, pantry, "user-1", "ing-egg", 6, far)

	results, err := e.Match(ctx, "user-1", Options{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].RecipeID != "r-full" {
		t.Errorf("expected r-full first, got %s", results[0].RecipeID)
	}
	// Equal score and missing count: newer recipe wins.
	if results[1].RecipeID != "r-half-recent" || results[2].RecipeID != "r-half" {
		t.Errorf("expected recency tie-break, got %s then %s", results[1].RecipeID, results[2].RecipeID)
	}
}

func TestMatch_ExpiryBonusPrefersSoonToExpire(t *testing.T) {
	ctx := context.Background()
	e, recipes, pantry := testEngine(t)

	putRecipe(t, recipes, "r-expiring", "Uses Expiring", time.Now(),
		models.RecipeIngredient{IngredientID: "ing-milk", Quantity: 1, Unit: "l"},
	)
	putRecipe(t, recipes, "r-stable", "Uses Stable", time.Now(),
		models.RecipeIngredient{IngredientID: "ing-rice", Quantity: 1, Unit: "kg"},
	)
	stock(t, pantry, "user-1", "ing-milk", 1, time.Now().Add(12*time.Hour))
	stock(t, pantry, "user-1", "ing-rice", 1, time.Now().Add(300*24*time.Hour))

	results, err := e.Match(ctx, "user-1", Options{})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].RecipeID != "r-expiring" {
		t.Errorf("expected soon-to-expire recipe ranked first, got %s", results[0].RecipeID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("expected expiry bonus to raise score: %v <= %v", results[0].Score, results[1].Score)
	}
}

func TestMatch_MinScoreAndLimit(t *testing.T) {
	ctx := context.Background()
	e, recipes, pantry := testEngine(t)
	far := time.Now().Add(30 * 24 * time.Hour)

	putRecipe(t, recipes, "r-match", "Match", time.Now(),
		models.RecipeIngredient{IngredientID: "ing-egg", Quantity: 1, Unit: "unit"},
	)
	putRecipe(t, recipes, "r-no-match", "No Match", time.Now(),
		models.RecipeIngredient{IngredientID: "ing-saffron", Quantity: 1, Unit: "g"},
	)
	stock(t, pantry, "user-1", "ing-egg", 1, far)

	results, err := e.Match(ctx, "user-1", Options{MinScore: 0.5})
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(results) != 1 || results[0].RecipeID != "r-match" {
		t.Errorf("expected only r-match above min score, got %+v", results)
	}

	results, err = e.Match(ctx, "user-1", Options{MinScore: 0.5, Limit: 1})
	if err != nil {
		t.Fatalf("Match with limit: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected limit 1 respected, got %d", len(results))
	}
}

func TestMatch_EmptyPantryAndEmptyCorpus(t *testing.T) {
	ctx := context.Background()
	e, recipes, _ := testEngine(t)

	results, err := e.Match(ctx, "user-1", Options{})
	if err != nil {
		t.Fatalf("Match on empty corpus: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}

	putRecipe(t, recipes, "r-any", "Any", time.Now(),
		models.RecipeIngredient{IngredientID: "ing-egg", Quantity: 1, Unit: "unit"},
	)
	results, err = e.Match(ctx, "user-1", Options{})
	if err != nil {
		t.Fatalf("Match on empty pantry: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("empty pantry must match nothing above min score, got %+v", results)
	}
}
