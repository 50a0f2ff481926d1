// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package store

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const blobKeyPrefix = "blob:"

// BlobStore is the object-storage contract for raw images. The ingestor
// writes images through it and the recognition worker hands references to
// the inference backend. A remote object store can replace the local
// implementation without touching the pipeline.
type BlobStore interface {
	// Put persists data and returns an opaque reference.
	Put(ctx context.Context, data []byte, contentType string) (string, error)

	// Get retrieves the data for a reference.
	Get(ctx context.Context, ref string) ([]byte, error)

	// GetWithType retrieves the data and recorded content type.
	GetWithType(ctx context.Context, ref string) ([]byte, string, error)

	// Delete removes a blob. Used for best-effort rollback when
	// enqueueing fails after the image was persisted.
	Delete(ctx context.Context, ref string) error
}

// BadgerBlobStore stores blobs in the shared Badger database. Suitable for
// standalone single-node deployments.
type BadgerBlobStore struct {
	db *DB
}

// NewBadgerBlobStore creates a local blob store.
func NewBadgerBlobStore(db *DB) *BadgerBlobStore {
	return &BadgerBlobStore{db: db}
}

// Put stores the blob under a fresh reference.
func (s *BadgerBlobStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	ref := "blobs/" + uuid.New().String()
	err := s.db.badger.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(blobKeyPrefix+ref), data); err != nil {
			return err
		}
		return txn.Set([]byte(blobKeyPrefix+ref+":type"), []byte(contentType))
	})
	if err != nil {
		return "", err
	}
	return ref, nil
}

// Get retrieves a blob by reference.
func (s *BadgerBlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := s.db.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blobKeyPrefix + ref))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// GetWithType retrieves a blob and its recorded content type.
func (s *BadgerBlobStore) GetWithType(ctx context.Context, ref string) ([]byte, string, error) {
	var data []byte
	var contentType string
	err := s.db.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(blobKeyPrefix + ref))
		if err != nil {
			return err
		}
		if data, err = item.ValueCopy(nil); err != nil {
			return err
		}
		typeItem, err := txn.Get([]byte(blobKeyPrefix + ref + ":type"))
		if err != nil {
			return err
		}
		raw, err := typeItem.ValueCopy(nil)
		if err != nil {
			return err
		}
		contentType = string(raw)
		return nil
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, "", ErrBlobNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return data, contentType, nil
}

// Delete removes a blob and its content-type record.
func (s *BadgerBlobStore) Delete(ctx context.Context, ref string) error {
	return s.db.badger.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(blobKeyPrefix + ref)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Delete([]byte(blobKeyPrefix + ref + ":type")); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return nil
	})
}
