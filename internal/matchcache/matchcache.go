// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package matchcache memoizes match computations under the pantry
// fingerprint and collapses concurrent requests for the same fingerprint
// onto a single matcher run.
package matchcache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/pantrio/internal/cache"
	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/matcher"
	"github.com/tomtom215/pantrio/internal/metrics"
	"github.com/tomtom215/pantrio/internal/models"
	"github.com/tomtom215/pantrio/internal/pantry"
	"github.com/tomtom215/pantrio/internal/store"
)

// Matcher computes ranked matches for a pantry snapshot. Implemented by
// the matcher engine.
type Matcher interface {
	MatchSnapshot(ctx context.Context, snap *models.PantrySnapshot, opts matcher.Options) ([]models.MatchResult, error)
}

// Cache serves match results keyed by pantry fingerprint with TTL and
// LRU bounds. Safe for concurrent use.
type Cache struct {
	engine  Matcher
	pantry  *store.PantryStore
	results *cache.LRUCache[[]models.MatchResult]
	group   singleflight.Group
	bucket  float64

	// variants indexes cache keys by fingerprint so invalidation evicts
	// every option variant computed under it.
	variantsMu sync.Mutex
	variants   map[string]map[string]struct{}

	cleanupInterval time.Duration
	started         atomic.Bool
	stopOnce        sync.Once
	stop            chan struct{}
	done            chan struct{}
}

// New creates the match cache in front of the matcher engine.
func New(engine Matcher, pantryStore *store.PantryStore, cfg config.CacheConfig, quantityBucket float64) *Cache {
	return &Cache{
		engine:          engine,
		pantry:          pantryStore,
		results:         cache.NewLRUCache[[]models.MatchResult](cfg.Capacity, cfg.TTL),
		bucket:          quantityBucket,
		variants:        make(map[string]map[string]struct{}),
		cleanupInterval: cfg.CleanupInterval,
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
	}
}

// GetOrCompute returns ranked matches for the user's current pantry,
// serving from cache when the fingerprint is unchanged. Concurrent
// callers for the same fingerprint coalesce onto one matcher run and all
// receive its result.
func (c *Cache) GetOrCompute(ctx context.Context, userID string, opts matcher.Options) ([]models.MatchResult, string, error) {
	snap, err := c.pantry.Snapshot(ctx, userID)
	if err != nil {
		return nil, "", fmt.Errorf("pantry snapshot for %s: %w", userID, err)
	}
	fingerprint := pantry.Fingerprint(snap, c.bucket)
	key := cacheKey(fingerprint, opts)

	if results, ok := c.results.Get(key); ok {
		metrics.MatchCacheHits.Inc()
		return results, fingerprint, nil
	}
	metrics.MatchCacheMisses.Inc()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// A waiter that lost the race to a just-finished flight still
		// finds the fresh entry here.
		if results, ok := c.results.Get(key); ok {
			return results, nil
		}
		results, err := c.engine.MatchSnapshot(ctx, snap, opts)
		if err != nil {
			return nil, err
		}
		c.results.Add(key, results)
		c.recordVariant(fingerprint, key)
		return results, nil
	})
	if err != nil {
		return nil, "", err
	}
	return v.([]models.MatchResult), fingerprint, nil
}

// Invalidate evicts every cached result computed under the given
// fingerprint. Called by the reconciler after an applied pantry change.
func (c *Cache) Invalidate(fingerprint string) {
	c.variantsMu.Lock()
	keys := c.variants[fingerprint]
	delete(c.variants, fingerprint)
	c.variantsMu.Unlock()

	removed := 0
	for key := range keys {
		if c.results.Remove(key) {
			removed++
		}
	}
	logging.Debug().
		Str("fingerprint", fingerprint).
		Int("removed", removed).
		Msg("Invalidated match cache fingerprint")
}

func (c *Cache) recordVariant(fingerprint, key string) {
	c.variantsMu.Lock()
	defer c.variantsMu.Unlock()
	set, ok := c.variants[fingerprint]
	if !ok {
		set = make(map[string]struct{})
		c.variants[fingerprint] = set
	}
	set[key] = struct{}{}
}

// Start runs the periodic TTL sweep until Stop is called.
func (c *Cache) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		if c.cleanupInterval <= 0 {
			<-c.stop
			return
		}
		ticker := time.NewTicker(c.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := c.results.CleanupExpired(); n > 0 {
					logging.Debug().Int("evicted", n).Msg("Swept expired match cache entries")
				}
				c.pruneVariants()
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop. Safe to call without a prior Start.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.started.Load() {
		<-c.done
	}
}

// Len reports the number of cached fingerprints.
func (c *Cache) Len() int {
	return c.results.Len()
}

// pruneVariants drops index records whose cache entries were evicted.
func (c *Cache) pruneVariants() {
	c.variantsMu.Lock()
	defer c.variantsMu.Unlock()
	for fp, keys := range c.variants {
		for key := range keys {
			if !c.results.Contains(key) {
				delete(keys, key)
			}
		}
		if len(keys) == 0 {
			delete(c.variants, fp)
		}
	}
}

func cacheKey(fingerprint string, opts matcher.Options) string {
	return fmt.Sprintf("%s|%g|%d", fingerprint, opts.MinScore, opts.Limit)
}
