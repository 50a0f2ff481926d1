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
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/pantrio/internal/models"
)

const (
	pantryKeyPrefix   = "pantry:"
	pantryIDKeyPrefix = "pantryid:"
)

// PantryStore persists pantry items with increment-or-create semantics.
//
// Writes to the same (userID, ingredientID, storageLocation) key are
// serialized through a per-key mutex so concurrent recognition jobs for the
// same user cannot lose updates. Distinct keys proceed in parallel.
type PantryStore struct {
	db *DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPantryStore creates a pantry store backed by the shared database.
func NewPantryStore(db *DB) *PantryStore {
	return &PantryStore{
		db:    db,
		locks: make(map[string]*sync.Mutex),
	}
}

// itemKey builds the primary key for an item slot.
func itemKey(userID, ingredientID, location string) string {
	return pantryKeyPrefix + userID + ":" + ingredientID + ":" + location
}

// keyLock returns the mutex serializing writes to one item slot.
func (s *PantryStore) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// UpsertResult reports what Increment did.
type UpsertResult struct {
	Item    models.PantryItem
	Created bool
}

// Increment adds quantity to the item at (userID, ingredientID, location),
// creating it with the given unit and expiration when absent. The
// read-modify-write runs under the slot's serialization lock, preserving
// the no-lost-update invariant under concurrent reconciliations.
func (s *PantryStore) Increment(ctx context.Context, userID, ingredientID, location string, qty float64, unit string, expiry time.Time) (*UpsertResult, error) {
	key := itemKey(userID, ingredientID, location)
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	var result UpsertResult
	err := s.db.badger.Update(func(txn *badger.Txn) error {
		var item models.PantryItem
		err := readJSON(txn, key, &item)

		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			item = models.PantryItem{
				ItemID:          uuid.New().String(),
				UserID:          userID,
				IngredientID:    ingredientID,
				Quantity:        qty,
				Unit:            unit,
				StorageLocation: location,
				ExpirationDate:  expiry,
				LastUpdatedAt:   time.Now().UTC(),
			}
			result.Created = true
		case err != nil:
			return err
		default:
			item.Quantity += qty
			item.LastUpdatedAt = time.Now().UTC()
			result.Created = false
		}

		if err := writeJSON(txn, key, &item); err != nil {
			return err
		}
		if result.Created {
			if err := txn.Set([]byte(pantryIDKeyPrefix+userID+":"+item.ItemID), []byte(key)); err != nil {
				return err
			}
		}
		result.Item = item
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("increment %s: %w", key, err)
	}
	return &result, nil
}

// Put stores an item directly, replacing any existing item in its slot.
// This is the direct-edit path used by the pantry API.
func (s *PantryStore) Put(ctx context.Context, item *models.PantryItem) error {
	if item.ItemID == "" {
		item.ItemID = uuid.New().String()
	}
	item.LastUpdatedAt = time.Now().UTC()

	key := itemKey(item.UserID, item.IngredientID, item.StorageLocation)
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	return s.db.badger.Update(func(txn *badger.Txn) error {
		if err := writeJSON(txn, key, item); err != nil {
			return err
		}
		return txn.Set([]byte(pantryIDKeyPrefix+item.UserID+":"+item.ItemID), []byte(key))
	})
}

// GetByID retrieves an item by its ID.
func (s *PantryStore) GetByID(ctx context.Context, userID, itemID string) (*models.PantryItem, error) {
	var item models.PantryItem
	err := s.db.badger.View(func(txn *badger.Txn) error {
		idx, err := txn.Get([]byte(pantryIDKeyPrefix + userID + ":" + itemID))
		if err != nil {
			return err
		}
		return idx.Value(func(primary []byte) error {
			return readJSON(txn, string(primary), &item)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Delete removes an item by ID.
func (s *PantryStore) Delete(ctx context.Context, userID, itemID string) error {
	item, err := s.GetByID(ctx, userID, itemID)
	if err != nil {
		return err
	}

	key := itemKey(item.UserID, item.IngredientID, item.StorageLocation)
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	return s.db.badger.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(pantryIDKeyPrefix + userID + ":" + itemID))
	})
}

// List returns all items for a user ordered by key.
func (s *PantryStore) List(ctx context.Context, userID string) ([]models.PantryItem, error) {
	var items []models.PantryItem
	prefix := []byte(pantryKeyPrefix + userID + ":")

	err := s.db.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var item models.PantryItem
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Snapshot takes a consistent read-only view of a user's pantry in one
// Badger read transaction, aggregating quantities per ingredient across
// storage locations.
func (s *PantryStore) Snapshot(ctx context.Context, userID string) (*models.PantrySnapshot, error) {
	snap := &models.PantrySnapshot{
		UserID:  userID,
		TakenAt: time.Now().UTC(),
		Items:   make(map[string]models.SnapshotEntry),
	}
	prefix := []byte(pantryKeyPrefix + userID + ":")

	err := s.db.badger.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var item models.PantryItem
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				return err
			}

			entry, ok := snap.Items[item.IngredientID]
			if !ok {
				entry = models.SnapshotEntry{
					IngredientID:   item.IngredientID,
					Unit:           item.Unit,
					EarliestExpiry: item.ExpirationDate,
				}
			}
			entry.Quantity += item.Quantity
			if !item.ExpirationDate.IsZero() &&
				(entry.EarliestExpiry.IsZero() || item.ExpirationDate.Before(entry.EarliestExpiry)) {
				entry.EarliestExpiry = item.ExpirationDate
			}
			snap.Items[item.IngredientID] = entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// parseItemKey splits a primary pantry key back into its components.
// Used by tests and diagnostics.
func parseItemKey(key string) (userID, ingredientID, location string, ok bool) {
	rest, found := strings.CutPrefix(key, pantryKeyPrefix)
	if !found {
		return "", "", "", false
	}
	parts := strings.SplitN(rest, ":", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
