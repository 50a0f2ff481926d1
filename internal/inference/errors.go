// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package inference

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors classifying recognition backend failures. Callers decide
// retry behavior from the class: unavailable and timeout are transient,
// invalid input is permanent.
var (
	// ErrUnavailable marks transport failures and 5xx responses.
	ErrUnavailable = errors.New("inference backend unavailable")

	// ErrInvalidInput marks inputs the backend rejected (4xx). Retrying
	// the same payload cannot succeed.
	ErrInvalidInput = errors.New("inference input rejected")

	// ErrTimeout marks an attempt that exceeded its deadline.
	ErrTimeout = errors.New("inference timed out")
)

// Retryable reports whether a recognition error is worth another attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout)
}

// ErrorKind returns a stable label for metrics and failure reasons.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}

// classifyHTTPStatus maps a backend response code onto the error taxonomy.
func classifyHTTPStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500:
		return fmt.Errorf("%w: status %d", ErrInvalidInput, code)
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, code)
	}
}
