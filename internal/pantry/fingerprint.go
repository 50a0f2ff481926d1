// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package pantry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"github.com/tomtom215/pantrio/internal/models"
)

// Fingerprint derives a compact digest of a pantry snapshot used as the
// match cache key. It hashes the sorted (ingredientID, quantity bucket)
// pairs, so adding, removing, or materially changing an item's quantity
// produces a new fingerprint while sub-bucket jitter does not.
func Fingerprint(snap *models.PantrySnapshot, bucket float64) string {
	if bucket <= 0 {
		bucket = 1
	}

	ids := make([]string, 0, len(snap.Items))
	for id := range snap.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		entry := snap.Items[id]
		b := int64(math.Floor(entry.Quantity / bucket))
		fmt.Fprintf(h, "%s:%d\n", id, b)
	}
	return hex.EncodeToString(h.Sum(nil))
}
