// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package store

import "errors"

// ErrJobNotFound is returned when a job ID does not exist.
var ErrJobNotFound = errors.New("recognition job not found")

// ErrJobNotClaimable is returned when a claim races another worker or the
// job is not in the queued state.
var ErrJobNotClaimable = errors.New("job is not claimable")

// ErrJobNotCancellable is returned when cancelling a job that has already
// been claimed. In-flight inference runs to completion or timeout.
var ErrJobNotCancellable = errors.New("job is already processing and cannot be cancelled")

// ErrItemNotFound is returned when a pantry item does not exist.
var ErrItemNotFound = errors.New("pantry item not found")

// ErrRecipeNotFound is returned when a recipe ID does not exist.
var ErrRecipeNotFound = errors.New("recipe not found")

// ErrBlobNotFound is returned when an image reference does not exist.
var ErrBlobNotFound = errors.New("blob not found")
