// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package store

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/pantrio/internal/models"
)

const recipeKeyPrefix = "recipe:"

// RecipeStore holds the read-only recipe corpus. Recipes are imported in
// bulk at startup (or by an operator) and read by the matcher; nothing in
// the pipeline mutates them.
type RecipeStore struct {
	db *DB
}

// NewRecipeStore creates a recipe store backed by the shared database.
func NewRecipeStore(db *DB) *RecipeStore {
	return &RecipeStore{db: db}
}

// Put stores a recipe record.
func (s *RecipeStore) Put(ctx context.Context, recipe *models.Recipe) error {
	if recipe.RecipeID == "" {
		return fmt.Errorf("recipe ID is required")
	}
	data, err := json.Marshal(recipe)
	if err != nil {
		return fmt.Errorf("marshal recipe %s: %w", recipe.RecipeID, err)
	}
	return s.db.badger.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recipeKeyPrefix+recipe.RecipeID), data)
	})
}

// Get retrieves a recipe by ID.
func (s *RecipeStore) Get(ctx context.Context, recipeID string) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.db.badger.View(func(txn *badger.Txn) error {
		return readJSON(txn, recipeKeyPrefix+recipeID, &recipe)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrRecipeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

// List returns a page of recipes ordered by ID. Pass the last recipe ID of
// the previous page as cursor ("" for the first page). A short page means
// the corpus is exhausted.
func (s *RecipeStore) List(ctx context.Context, cursor string, limit int) ([]models.Recipe, error) {
	if limit <= 0 {
		limit = 100
	}

	var recipes []models.Recipe
	err := s.db.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recipeKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		start := []byte(recipeKeyPrefix)
		if cursor != "" {
			// Seek just past the cursor key.
			start = append([]byte(recipeKeyPrefix+cursor), 0)
		}

		for it.Seek(start); it.Valid() && len(recipes) < limit; it.Next() {
			var recipe models.Recipe
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &recipe)
			}); err != nil {
				return err
			}
			recipes = append(recipes, recipe)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return recipes, nil
}

// ForEach streams every recipe in the corpus to fn, stopping on the first
// error. The matcher uses this to scan the corpus without materializing it.
func (s *RecipeStore) ForEach(ctx context.Context, fn func(*models.Recipe) error) error {
	return s.db.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recipeKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var recipe models.Recipe
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &recipe)
			}); err != nil {
				return err
			}
			if err := fn(&recipe); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of recipes in the corpus.
func (s *RecipeStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recipeKeyPrefix)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Import reads a JSON array of recipes and stores each one. Returns the
// number imported. Malformed input aborts the import; recipes stored
// before the error remain.
func (s *RecipeStore) Import(ctx context.Context, r io.Reader) (int, error) {
	dec := json.NewDecoder(r)

	var recipes []models.Recipe
	if err := dec.Decode(&recipes); err != nil {
		return 0, fmt.Errorf("decode recipe corpus: %w", err)
	}

	imported := 0
	for i := range recipes {
		if err := s.Put(ctx, &recipes[i]); err != nil {
			return imported, fmt.Errorf("import recipe %d: %w", i, err)
		}
		imported++
	}
	return imported, nil
}
