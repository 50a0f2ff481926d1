// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package cache

import "time"

// Deduplicator tracks recently seen keys for message deduplication.
// It records a key on first sight and reports subsequent sightings within
// the TTL as duplicates. Capacity is bounded by the underlying LRU.
type Deduplicator struct {
	cache *LRUCache[time.Time]
}

// NewDeduplicator creates a deduplicator with the given capacity and TTL.
func NewDeduplicator(capacity int, ttl time.Duration) *Deduplicator {
	return &Deduplicator{cache: NewLRUCache[time.Time](capacity, ttl)}
}

// Seen reports whether the key was recorded within the TTL, recording it
// if not. The check and record are a single atomic operation.
func (d *Deduplicator) Seen(key string) bool {
	d.cache.mu.Lock()
	defer d.cache.mu.Unlock()

	now := time.Now()

	if entry, exists := d.cache.items[key]; exists {
		if !now.After(entry.expiresAt) {
			d.cache.moveToFront(entry)
			d.cache.hits++
			return true
		}
		d.cache.removeEntry(entry)
	}

	entry := &lruEntry[time.Time]{
		key:       key,
		value:     now,
		expiresAt: now.Add(d.cache.ttl),
	}
	d.cache.addToFront(entry)
	d.cache.items[key] = entry

	for len(d.cache.items) > d.cache.capacity {
		d.cache.evictOldest()
	}

	d.cache.misses++
	return false
}

// Len returns the number of tracked keys.
func (d *Deduplicator) Len() int {
	return d.cache.Len()
}
