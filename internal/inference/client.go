// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/pantrio/internal/config"
	"github.com/tomtom215/pantrio/internal/logging"
	"github.com/tomtom215/pantrio/internal/metrics"
	"github.com/tomtom215/pantrio/internal/models"
)

// Client wraps a Backend with rate limiting, a circuit breaker, and
// bounded in-attempt retries for transient failures. One Recognize call
// corresponds to one job attempt and carries a hard deadline.
type Client struct {
	backend Backend
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]models.RecognitionCandidate]
	cfg     config.InferenceConfig
}

// NewClient builds the resilient recognition client. The breaker opens
// after the configured failure ratio across a minimum request count, so a
// dead model service sheds load instead of stalling every worker.
func NewClient(backend Backend, cfg config.InferenceConfig) *Client {
	cb := gobreaker.NewCircuitBreaker[[]models.RecognitionCandidate](gobreaker.Settings{
		Name:        "recognition-backend",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Recognition breaker state change")
		},
		IsSuccessful: func(err error) bool {
			// Rejected inputs are the caller's fault, not backend health.
			return err == nil || errors.Is(err, ErrInvalidInput)
		},
	})

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	return &Client{
		backend: backend,
		limiter: rate.NewLimiter(limit, burst),
		cb:      cb,
		cfg:     cfg,
	}
}

// Recognize runs one recognition attempt under the configured deadline.
// Transient failures are retried with exponential backoff until the
// deadline expires; the attempt then surfaces the last error.
func (c *Client) Recognize(ctx context.Context, image []byte, contentType string) ([]models.RecognitionCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	candidates, err := c.recognizeWithRetry(ctx, image, contentType)
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.InferenceErrors.WithLabelValues(ErrorKind(err)).Inc()
		return nil, err
	}
	return candidates, nil
}

func (c *Client) recognizeWithRetry(ctx context.Context, image []byte, contentType string) ([]models.RecognitionCandidate, error) {
	var lastErr error
	delay := c.cfg.RetryInitial

	for {
		candidates, err := c.recognizeOnce(ctx, image, contentType)
		if err == nil {
			return candidates, nil
		}
		lastErr = err

		if !Retryable(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, lastErr)
		}

		logging.Warn().Err(err).Dur("delay", delay).Msg("Recognition attempt failed, retrying")
		metrics.InferenceRetries.Inc()

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrTimeout, lastErr)
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * c.cfg.RetryMultiplier)
		if delay > c.cfg.RetryMax {
			delay = c.cfg.RetryMax
		}
	}
}

func (c *Client) recognizeOnce(ctx context.Context, image []byte, contentType string) ([]models.RecognitionCandidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	candidates, err := c.cb.Execute(func() ([]models.RecognitionCandidate, error) {
		return c.backend.Recognize(ctx, image, contentType)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return candidates, err
}
