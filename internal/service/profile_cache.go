package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const profileKeyPrefix = "identity:profile:"

// ProfileCache is a read-through Redis cache for public profiles. User
// records are immutable after creation, so entries never need explicit
// invalidation; the TTL bounds staleness for deleted databases. All cache
// failures degrade to store reads.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewProfileCache builds a cache around a Redis client. A nil client
// yields a cache that always misses.
func NewProfileCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ProfileCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProfileCache{client: client, ttl: ttl, logger: logger}
}

// Get returns a cached profile, or ok=false on miss or cache failure.
func (c *ProfileCache) Get(ctx context.Context, id string) (*Profile, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, profileKeyPrefix+id).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("profile cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var profile Profile
	if err := json.Unmarshal(raw, &profile); err != nil {
		c.logger.Warn("profile cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return &profile, true
}

// Set stores a profile, best effort.
func (c *ProfileCache) Set(ctx context.Context, profile *Profile) {
	if c == nil || c.client == nil || profile == nil {
		return
	}

	raw, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, profileKeyPrefix+profile.ID, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("profile cache write failed", zap.Error(err))
	}
}
