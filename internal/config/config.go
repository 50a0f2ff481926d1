// Pantrio - Ingredient Recognition and Recipe Matching
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pantrio

// Package config provides layered application configuration via Koanf v2.
//
// Precedence (highest wins): environment variables > config file > defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	NATS      NATSConfig      `koanf:"nats"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Inference InferenceConfig `koanf:"inference"`
	Resolver  ResolverConfig  `koanf:"resolver"`
	Pantry    PantryConfig    `koanf:"pantry"`
	Matcher   MatcherConfig   `koanf:"matcher"`
	Cache     CacheConfig     `koanf:"cache"`
	API       APIConfig       `koanf:"api"`
}

// LoggingConfig controls the zerolog global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// StorageConfig holds BadgerDB paths and maintenance settings.
type StorageConfig struct {
	// Path is the BadgerDB directory. Empty with InMemory=true runs
	// fully in memory (tests, ephemeral deployments).
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// GCInterval is how often the value-log garbage collector runs.
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCDiscardRatio is the Badger value-log rewrite threshold.
	GCDiscardRatio float64 `koanf:"gc_discard_ratio"`
}

// NATSConfig holds the optional NATS JetStream transport settings.
// When disabled, the pipeline runs on an in-process Go channel transport.
type NATSConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	// QueueGroup balances job messages across worker instances.
	QueueGroup  string `koanf:"queue_group"`
	DurableName string `koanf:"durable_name"`

	SubscribersCount int           `koanf:"subscribers_count"`
	AckWaitTimeout   time.Duration `koanf:"ack_wait_timeout"`
	MaxDeliver       int           `koanf:"max_deliver"`
	MaxReconnects    int           `koanf:"max_reconnects"`
	ReconnectWait    time.Duration `koanf:"reconnect_wait"`
	CloseTimeout     time.Duration `koanf:"close_timeout"`
}

// IngestConfig bounds what the image ingestor accepts.
type IngestConfig struct {
	MaxImageBytes       int64    `koanf:"max_image_bytes"`
	AllowedContentTypes []string `koanf:"allowed_content_types"`
}

// InferenceConfig holds inference backend client settings.
type InferenceConfig struct {
	URL string `koanf:"url"`

	// Timeout is the hard per-call deadline. Exceeding it is a retryable
	// failure, never a hang.
	Timeout time.Duration `koanf:"timeout"`

	// MaxAttempts bounds inference retries per job, including the first
	// attempt. Exhausting it fails the job.
	MaxAttempts     int           `koanf:"max_attempts"`
	RetryInitial    time.Duration `koanf:"retry_initial"`
	RetryMax        time.Duration `koanf:"retry_max"`
	RetryMultiplier float64       `koanf:"retry_multiplier"`

	// RequestsPerSecond rate-limits calls to the backend (0 = unlimited).
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	Burst             int     `koanf:"burst"`

	// Circuit breaker settings.
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`

	// VisibilityTimeout is how long a claimed job stays invisible before
	// it becomes reclaimable (crashed worker recovery).
	VisibilityTimeout time.Duration `koanf:"visibility_timeout"`

	// ReaperInterval is how often expired claims are swept back to queued.
	ReaperInterval time.Duration `koanf:"reaper_interval"`
}

// ResolverConfig controls candidate resolution.
type ResolverConfig struct {
	// ConfidenceThreshold drops resolved ingredients below this value.
	ConfidenceThreshold float64 `koanf:"confidence_threshold"`

	// OverlapThreshold is the bounding-region IoU above which two distinct
	// canonical ingredients are treated as the same physical object.
	OverlapThreshold float64 `koanf:"overlap_threshold"`
}

// PantryConfig controls reconciliation.
type PantryConfig struct {
	// AutoAcceptThreshold is the confidence at or above which a resolved
	// ingredient is applied without user confirmation.
	AutoAcceptThreshold float64 `koanf:"auto_accept_threshold"`

	DefaultStorageLocation string  `koanf:"default_storage_location"`
	DefaultUnit            string  `koanf:"default_unit"`
	IncrementQuantity      float64 `koanf:"increment_quantity"`

	// QuantityBucket is the bucket width used by the pantry fingerprint so
	// sub-bucket quantity jitter does not churn the match cache.
	QuantityBucket float64 `koanf:"quantity_bucket"`
}

// MatcherConfig controls recipe scoring.
type MatcherConfig struct {
	MinScore     float64 `koanf:"min_score"`
	DefaultLimit int     `koanf:"default_limit"`
	MaxLimit     int     `koanf:"max_limit"`

	// CorpusPath points at a JSON recipe corpus imported at startup.
	// Empty skips the import; recipes can still arrive via the API.
	CorpusPath string `koanf:"corpus_path"`

	// ExpiryBonusWeight scales the bonus for recipes consuming
	// soon-to-expire pantry items.
	ExpiryBonusWeight float64 `koanf:"expiry_bonus_weight"`

	// ExpiryHorizon is the window within which an item counts as
	// soon-to-expire.
	ExpiryHorizon time.Duration `koanf:"expiry_horizon"`
}

// CacheConfig controls the match result cache.
type CacheConfig struct {
	Capacity int           `koanf:"capacity"`
	TTL      time.Duration `koanf:"ttl"`

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// APIConfig holds HTTP API settings.
type APIConfig struct {
	// JWTSecret verifies bearer tokens issued by the external auth
	// service. Empty disables verification (development only).
	JWTSecret string `koanf:"jwt_secret"`

	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// defaultConfig returns a Config with all default values applied.
func defaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8343,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Path:           "/data/pantrio",
			InMemory:       false,
			GCInterval:     10 * time.Minute,
			GCDiscardRatio: 0.5,
		},
		NATS: NATSConfig{
			Enabled:          false,
			URL:              "nats://127.0.0.1:4222",
			EmbeddedServer:   true,
			StoreDir:         "/data/nats/jetstream",
			MaxMemory:        1 << 30,  // 1GB
			MaxStore:         10 << 30, // 10GB
			QueueGroup:       "recognition-workers",
			DurableName:      "recognition",
			SubscribersCount: 4,
			AckWaitTimeout:   60 * time.Second,
			MaxDeliver:       5,
			MaxReconnects:    -1,
			ReconnectWait:    2 * time.Second,
			CloseTimeout:     30 * time.Second,
		},
		Ingest: IngestConfig{
			MaxImageBytes: 10 << 20, // 10MB
			AllowedContentTypes: []string{
				"image/jpeg",
				"image/png",
				"image/webp",
			},
		},
		Inference: InferenceConfig{
			URL:                     "",
			Timeout:                 15 * time.Second,
			MaxAttempts:             3,
			RetryInitial:            time.Second,
			RetryMax:                30 * time.Second,
			RetryMultiplier:         2.0,
			RequestsPerSecond:       10,
			Burst:                   5,
			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
			BreakerMaxRequests:      1,
			VisibilityTimeout:       2 * time.Minute,
			ReaperInterval:          30 * time.Second,
		},
		Resolver: ResolverConfig{
			ConfidenceThreshold: 0.6,
			OverlapThreshold:    0.5,
		},
		Pantry: PantryConfig{
			AutoAcceptThreshold:    0.8,
			DefaultStorageLocation: "pantry",
			DefaultUnit:            "unit",
			IncrementQuantity:      1,
			QuantityBucket:         1,
		},
		Matcher: MatcherConfig{
			MinScore:          0.0,
			DefaultLimit:      20,
			MaxLimit:          100,
			ExpiryBonusWeight: 0.05,
			ExpiryHorizon:     72 * time.Hour,
		},
		Cache: CacheConfig{
			Capacity:        1024,
			TTL:             10 * time.Minute,
			CleanupInterval: time.Minute,
		},
		API: APIConfig{
			JWTSecret:          "",
			RateLimitRequests:  100,
			RateLimitWindow:    time.Minute,
			CORSAllowedOrigins: []string{"*"},
		},
	}
}

// Validate checks configuration invariants. It is called after loading and
// again if configuration is constructed directly in tests.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1,65535], got %d", c.Server.Port)
	}
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required unless storage.in_memory is set")
	}
	if c.Storage.GCDiscardRatio <= 0 || c.Storage.GCDiscardRatio >= 1 {
		return fmt.Errorf("storage.gc_discard_ratio must be in (0,1), got %f", c.Storage.GCDiscardRatio)
	}
	if c.Ingest.MaxImageBytes <= 0 {
		return fmt.Errorf("ingest.max_image_bytes must be positive")
	}
	if len(c.Ingest.AllowedContentTypes) == 0 {
		return fmt.Errorf("ingest.allowed_content_types must not be empty")
	}
	if c.Inference.MaxAttempts < 1 {
		return fmt.Errorf("inference.max_attempts must be >= 1, got %d", c.Inference.MaxAttempts)
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("inference.timeout must be positive")
	}
	if c.Inference.RetryMultiplier < 1 {
		return fmt.Errorf("inference.retry_multiplier must be >= 1, got %f", c.Inference.RetryMultiplier)
	}
	if c.Inference.VisibilityTimeout <= 0 {
		return fmt.Errorf("inference.visibility_timeout must be positive")
	}
	if c.Resolver.ConfidenceThreshold < 0 || c.Resolver.ConfidenceThreshold > 1 {
		return fmt.Errorf("resolver.confidence_threshold must be in [0,1], got %f", c.Resolver.ConfidenceThreshold)
	}
	if c.Resolver.OverlapThreshold < 0 || c.Resolver.OverlapThreshold > 1 {
		return fmt.Errorf("resolver.overlap_threshold must be in [0,1], got %f", c.Resolver.OverlapThreshold)
	}
	if c.Pantry.AutoAcceptThreshold < c.Resolver.ConfidenceThreshold {
		return fmt.Errorf("pantry.auto_accept_threshold (%f) must be >= resolver.confidence_threshold (%f)",
			c.Pantry.AutoAcceptThreshold, c.Resolver.ConfidenceThreshold)
	}
	if c.Pantry.IncrementQuantity <= 0 {
		return fmt.Errorf("pantry.increment_quantity must be positive")
	}
	if c.Pantry.QuantityBucket <= 0 {
		return fmt.Errorf("pantry.quantity_bucket must be positive")
	}
	if c.Matcher.MinScore < 0 || c.Matcher.MinScore > 1 {
		return fmt.Errorf("matcher.min_score must be in [0,1], got %f", c.Matcher.MinScore)
	}
	if c.Matcher.DefaultLimit < 1 || c.Matcher.DefaultLimit > c.Matcher.MaxLimit {
		return fmt.Errorf("matcher.default_limit must be in [1,%d], got %d", c.Matcher.MaxLimit, c.Matcher.DefaultLimit)
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache.capacity must be >= 1, got %d", c.Cache.Capacity)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	return nil
}
