package announcements

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grocerops/grocerops/internal/platform/cache"
)

const cacheKey = "grocerops:announcements"

// Cache keeps the full announcement list in Redis for a fixed TTL.
type Cache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewCache constructs Cache. A nil client or non-positive ttl disables caching.
func NewCache(client redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

// Get returns the cached list and whether it was present.
func (c *Cache) Get(ctx context.Context) ([]Announcement, bool, error) {
	if !c.enabled() {
		return nil, false, nil
	}
	var items []Announcement
	if err := cache.GetJSON(ctx, c.client, cacheKey, &items); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return items, true, nil
}

// Set stores items.
func (c *Cache) Set(ctx context.Context, items []Announcement) error {
	if !c.enabled() {
		return nil
	}
	return cache.SetJSON(ctx, c.client, cacheKey, items, c.ttl)
}

// Invalidate drops the cached list.
func (c *Cache) Invalidate(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Del(ctx, cacheKey).Err()
}
