// Package cache provides a key-value cache with per-key expiry, used as a
// memoizing layer in front of slow lookups. Keys follow a conventional
// prefix per entity type: "topic:{id}", "template:{id}", "market:{symbol}",
// "articles:recent".
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Key prefixes and TTLs used across the pipeline.
const (
	TopicKeyPrefix    = "topic:"
	TemplateKeyPrefix = "template:"
	MarketKeyPrefix   = "market:"
	RecentArticlesKey = "articles:recent"

	TopicTTL    = time.Hour
	TemplateTTL = time.Hour
	MarketTTL   = 5 * time.Minute
)

// Backend is the raw storage a Service sits on top of. Implementations must
// treat each key operation as atomic; there are no multi-key transactions.
type Backend interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
	Exists(ctx context.Context, key string) (bool, error)
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Service is the cache used by the pipeline. Its failure policy is
// asymmetric: reads fail open (a backend error is logged and treated as a
// miss), writes fail closed (a backend error is logged and returned, since
// silently dropping a write could corrupt downstream invariants such as
// rate-limit counters).
type Service struct {
	backend Backend
}

// NewService creates a cache service over the given backend.
func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

// Set stores a JSON-serialized value under key. A ttl of zero means no expiry.
func (s *Service) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize cache value for %s: %w", key, err)
	}

	if err := s.backend.Set(ctx, key, data, ttl); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Cache set failed")
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}
	return nil
}

// Get loads the value stored under key into dest. It returns false on a
// miss, on an expired entry, and on any backend error; callers already
// handle the not-cached path, so a backend failure adds no new failure mode.
func (s *Service) Get(ctx context.Context, key string, dest interface{}) bool {
	data, found, err := s.backend.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache get failed, treating as miss")
		return false
	}
	if !found {
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache entry corrupt, treating as miss")
		return false
	}
	return true
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *Service) Delete(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Cache delete failed")
		return fmt.Errorf("failed to delete cache key %s: %w", key, err)
	}
	return nil
}

// DeletePattern removes all keys matching a glob pattern (e.g. "market:*")
// and returns how many were removed.
func (s *Service) DeletePattern(ctx context.Context, pattern string) (int64, error) {
	count, err := s.backend.DeletePattern(ctx, pattern)
	if err != nil {
		log.Error().Err(err).Str("pattern", pattern).Msg("Cache pattern delete failed")
		return 0, fmt.Errorf("failed to delete cache pattern %s: %w", pattern, err)
	}
	return count, nil
}

// Exists reports whether key is present and unexpired. Like Get, it fails
// open: a backend error reads as absent.
func (s *Service) Exists(ctx context.Context, key string) bool {
	found, err := s.backend.Exists(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache exists check failed, treating as absent")
		return false
	}
	return found
}

// Increment atomically increments the counter stored at key, creating it at
// 1 with the given ttl when absent, and returns the new value.
func (s *Service) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.backend.Increment(ctx, key, ttl)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Cache increment failed")
		return 0, fmt.Errorf("failed to increment cache key %s: %w", key, err)
	}
	return n, nil
}
