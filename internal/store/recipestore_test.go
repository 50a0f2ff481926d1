// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/pantrio/internal/models"
)

func seedRecipes(t *testing.T, s *RecipeStore, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		recipe := &models.Recipe{
			RecipeID: fmt.Sprintf("recipe-%03d", i),
			Name:     fmt.Sprintf("Recipe %d", i),
			RequiredIngredients: []models.RecipeIngredient{
				{IngredientID: "ing-flour", Quantity: 100, Unit: "g"},
			},
			AddedAt: time.Now().UTC(),
		}
		if err := s.Put(ctx, recipe); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
}

func TestRecipeStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := NewRecipeStore(openTestDB(t))
	seedRecipes(t, s, 1)

	got, err := s.Get(ctx, "recipe-000")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Recipe 0" || len(got.RequiredIngredients) != 1 {
		t.Errorf("unexpected recipe: %+v", got)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrRecipeNotFound) {
		t.Errorf("expected ErrRecipeNotFound, got %v", err)
	}
}

func TestRecipeStore_ListPagination(t *testing.T) {
	ctx := context.Background()
	s := NewRecipeStore(openTestDB(t))
	seedRecipes(t, s, 5)

	page1, err := s.List(ctx, "", 2)
	if err != nil {
		t.Fatalf("List page 1: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("expected 2 recipes, got %d", len(page1))
	}
	if page1[0].RecipeID != "recipe-000" || page1[1].RecipeID != "recipe-001" {
		t.Errorf("unexpected page 1 order: %s, %s", page1[0].RecipeID, page1[1].RecipeID)
	}

	page2, err := s.List(ctx, page1[1].RecipeID, 2)
	if err != nil {
		t.Fatalf("List page 2: %v", err)
	}
	if len(page2) != 2 || page2[0].RecipeID != "recipe-002" {
		t.Errorf("unexpected page 2: %+v", page2)
	}

	page3, err := s.List(ctx, page2[1].RecipeID, 2)
	if err != nil {
		t.Fatalf("List page 3: %v", err)
	}
	if len(page3) != 1 || page3[0].RecipeID != "recipe-004" {
		t.Errorf("unexpected final page: %+v", page3)
	}
}

func TestRecipeStore_ForEachAndCount(t *testing.T) {
	ctx := context.Background()
	s := NewRecipeStore(openTestDB(t))
	seedRecipes(t, s, 4)

	seen := 0
	if err := s.ForEach(ctx, func(r *models.Recipe) error {
		seen++
		return nil
	}); err != nil {
		t.Fatalf("ForEach: %v", err)
	}
	if seen != 4 {
		t.Errorf("expected 4 recipes, got %d", seen)
	}

	count, err := s.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 4 {
		t.Errorf("expected count 4, got %d", count)
	}

	// A callback error stops the scan.
	stop := errors.New("stop")
	calls := 0
	err = s.ForEach(ctx, func(r *models.Recipe) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Errorf("expected callback error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected scan to stop after first call, got %d", calls)
	}
}

func TestRecipeStore_Import(t *testing.T) {
	ctx := context.Background()
	s := NewRecipeStore(openTestDB(t))

	corpus := `[
		{"recipe_id": "r-pancakes", "name": "Pancakes", "required_ingredients": [
			{"ingredient_id": "ing-flour", "quantity": 200, "unit": "g"},
			{"ingredient_id": "ing-egg", "quantity": 2, "unit": "unit"}
		]},
		{"recipe_id": "r-omelette", "name": "Omelette", "required_ingredients": [
			{"ingredient_id": "ing-egg", "quantity": 3, "unit": "unit"}
		]}
	]`

	n, err := s.Import(ctx, strings.NewReader(corpus))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 imported, got %d", n)
	}

	got, err := s.Get(ctx, "r-pancakes")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.RequiredIngredients) != 2 {
		t.Errorf("unexpected ingredients: %+v", got.RequiredIngredients)
	}

	if _, err := s.Import(ctx, strings.NewReader("not json")); err == nil {
		t.Error("expected error importing malformed corpus")
	}
}
