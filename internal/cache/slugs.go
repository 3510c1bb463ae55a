// Package cache holds the redis-backed lookup cache for subdomain
// resolution. Every request on a workspace subdomain needs the slug's
// workspace row; caching it keeps the hot path off postgres.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rishabhxchoudhary/fractal/pkg/domain"
)

const (
	slugKeyPrefix = "fractal:slug:"
	slugTTL       = 5 * time.Minute
)

// SlugCache caches slug to workspace lookups. A nil *SlugCache is valid
// and behaves as a permanent miss, so callers never branch on whether
// redis is configured.
type SlugCache struct {
	client *redis.Client
}

// NewSlugCache creates a slug cache on the given redis client.
func NewSlugCache(client *redis.Client) *SlugCache {
	return &SlugCache{client: client}
}

// Get returns the cached workspace for a slug, or ok=false on a miss.
func (c *SlugCache) Get(ctx context.Context, slug string) (*domain.Workspace, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, slugKeyPrefix+slug).Bytes()
	if err != nil {
		return nil, false
	}

	var workspace domain.Workspace
	if err := json.Unmarshal(data, &workspace); err != nil {
		return nil, false
	}
	return &workspace, true
}

// Set stores the workspace under its slug.
func (c *SlugCache) Set(ctx context.Context, workspace *domain.Workspace) {
	if c == nil {
		return
	}

	data, err := json.Marshal(workspace)
	if err != nil {
		return
	}
	c.client.Set(ctx, slugKeyPrefix+workspace.Slug, data, slugTTL)
}

// Invalidate drops a slug entry. Called on rename, re-slug, and delete.
func (c *SlugCache) Invalidate(ctx context.Context, slug string) {
	if c == nil {
		return
	}
	c.client.Del(ctx, slugKeyPrefix+slug)
}

// Ping verifies the redis connection at startup.
func (c *SlugCache) Ping(ctx context.Context) error {
	if c == nil {
		return errors.New("cache not configured")
	}
	return c.client.Ping(ctx).Err()
}
