package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// DefaultListingTTL bounds how long a cached class listing may be served.
	DefaultListingTTL = 5 * time.Minute

	listingPrefix = "erducate:listing"
	scanBatch     = 100
)

// ListingCache is a best-effort read-through cache for class listings. It
// is an optimisation only: a miss or a failure falls back to the store and
// every mutation invalidates the class explicitly.
type ListingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewListingCache builds a cache backed by redis. A nil client disables caching.
func NewListingCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *ListingCache {
	if ttl <= 0 || ttl > time.Hour {
		ttl = DefaultListingTTL
	}
	return &ListingCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "listing_cache").Logger(),
	}
}

// TTL reports the configured lifetime of an entry.
func (c *ListingCache) TTL() time.Duration {
	if c == nil {
		return 0
	}
	return c.ttl
}

func listingKey(classID, viewerID, role string) string {
	return fmt.Sprintf("%s:%s:%s:%s", listingPrefix, classID, role, viewerID)
}

// Get decodes a cached listing into target and reports whether it was found.
func (c *ListingCache) Get(ctx context.Context, classID, viewerID, role string, target interface{}) bool {
	if c == nil || c.client == nil {
		return false
	}

	raw, err := c.client.Get(ctx, listingKey(classID, viewerID, role)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("class_id", classID).Msg("failed to read listing cache")
		}
		return false
	}

	if err := json.Unmarshal(raw, target); err != nil {
		c.logger.Warn().Err(err).Str("class_id", classID).Msg("discarding undecodable listing cache entry")
		return false
	}
	return true
}

// Set stores a listing for the configured TTL.
func (c *ListingCache) Set(ctx context.Context, classID, viewerID, role string, value interface{}) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to encode listing cache entry")
		return
	}

	if err := c.client.Set(ctx, listingKey(classID, viewerID, role), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("class_id", classID).Msg("failed to store listing cache")
	}
}

// InvalidateClass drops every cached listing of the class.
func (c *ListingCache) InvalidateClass(ctx context.Context, classID string) {
	if c == nil || c.client == nil {
		return
	}

	pattern := fmt.Sprintf("%s:%s:*", listingPrefix, classID)
	var cursor uint64
	removed := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			c.logger.Warn().Err(err).Str("class_id", classID).Msg("failed to scan listing cache")
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn().Err(err).Str("class_id", classID).Msg("failed to invalidate listing cache")
				return
			}
			removed += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug().Str("class_id", classID).Int("removed", removed).Msg("listing cache invalidated")
}
