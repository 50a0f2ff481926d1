// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package store provides BadgerDB-backed persistence for the recognition
// pipeline: the job queue records, pantry inventory, recipe corpus, and
// image blobs.
//
// Key layout:
//
//	job:<jobID>                         RecognitionJob
//	applied:<jobID>                     reconciliation dedupe marker
//	pantry:<userID>:<ingredientID>:<location>  PantryItem
//	pantryid:<userID>:<itemID>          primary key of the item (index)
//	recipe:<recipeID>                   Recipe
//	blob:<ref>                          raw image bytes
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/logging"
)

// DB wraps the Badger handle shared by all stores.
type DB struct {
	badger *badger.DB
}

// Open opens (or creates) the Badger database described by cfg.
func Open(cfg config.StorageConfig) (*DB, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Badger's default logger writes unstructured lines to stderr.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	return &DB{badger: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.badger.Close()
}

// Backend exposes the raw Badger handle for stores in this package.
func (d *DB) Backend() *badger.DB {
	return d.badger
}

// GC runs periodic value-log garbage collection. It implements the
// Start/Stop lifecycle so it can run under the supervisor's data layer.
type GC struct {
	db       *DB
	interval time.Duration
	ratio    float64
	stop     chan struct{}
	done     chan struct{}
}

// NewGC creates a garbage collector for the database.
func NewGC(db *DB, interval time.Duration, ratio float64) *GC {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.5
	}
	return &GC{
		db:       db,
		interval: interval,
		ratio:    ratio,
	}
}

// Start launches the GC loop in a background goroutine.
func (g *GC) Start(ctx context.Context) error {
	g.stop = make(chan struct{})
	g.done = make(chan struct{})

	go func() {
		defer close(g.done)
		ticker := time.NewTicker(g.interval)
		defer ticker.Stop()

		log := logging.With().Str("component", "store-gc").Logger()
		for {
			select {
			case <-ctx.Done():
				return
			case <-g.stop:
				return
			case <-ticker.C:
				// One GC cycle rewrites at most one value log file;
				// loop until there is nothing left to rewrite.
				for {
					err := g.db.badger.RunValueLogGC(g.ratio)
					if err != nil {
						if !errors.Is(err, badger.ErrNoRewrite) {
							log.Warn().Err(err).Msg("value log GC failed")
						}
						break
					}
				}
			}
		}
	}()
	return nil
}

// Stop terminates the GC loop and waits for it to exit.
func (g *GC) Stop() {
	if g.stop == nil {
		return
	}
	close(g.stop)
	<-g.done
}
