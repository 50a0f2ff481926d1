// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/pantrio/internal/cache"
)

// RouterConfig tunes the message router's middleware chain.
type RouterConfig struct {
	CloseTimeout time.Duration

	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64

	// PoisonTopic receives messages that exhausted handler retries.
	// Empty disables the poison queue.
	PoisonTopic string

	// DedupTTL bounds how long handled message IDs are remembered.
	// Zero disables router-level deduplication.
	DedupTTL time.Duration
}

// DefaultRouterConfig returns production defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
		PoisonTopic:          TopicPoison,
		DedupTTL:             5 * time.Minute,
	}
}

// dedupRepository adapts the bounded deduplicator to Watermill's
// expiring-key repository interface.
type dedupRepository struct {
	dedup *cache.Deduplicator
}

func (r *dedupRepository) IsDuplicate(_ context.Context, key string) (bool, error) {
	return r.dedup.Seen(key), nil
}

// NewRouter builds a message router with panic recovery, exponential
// retry, optional message-ID deduplication, and a poison queue for
// permanent failures.
func NewRouter(cfg RouterConfig, bus *Bus) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, bus.logger)
	if err != nil {
		return nil, fmt.Errorf("create message router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)

	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          bus.logger,
	}
	router.AddMiddleware(retry.Middleware)

	if cfg.DedupTTL > 0 {
		// Keyed on message UUID: republished dispatches carry fresh
		// UUIDs, so reclaimed jobs are still redelivered.
		dedup := middleware.Deduplicator{
			KeyFactory: func(msg *message.Message) (string, error) {
				return msg.UUID, nil
			},
			Repository: &dedupRepository{dedup: cache.NewDeduplicator(10000, cfg.DedupTTL)},
		}
		router.AddMiddleware(dedup.Middleware)
	}

	if cfg.PoisonTopic != "" {
		poison, err := middleware.PoisonQueue(bus.Publisher(), cfg.PoisonTopic)
		if err != nil {
			return nil, fmt.Errorf("create poison queue middleware: %w", err)
		}
		router.AddMiddleware(poison)
	}

	return router, nil
}
