package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/grocerops/grocerops/internal/platform/cache"
)

const snapshotKey = "grocerops:inventory:snapshot"

// SnapshotStore keeps the latest snapshot between polls.
type SnapshotStore interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// RedisStore keeps the snapshot as JSON in Redis.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore. Snapshots older than ttl expire.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Load returns nil without error when no snapshot is stored.
func (s *RedisStore) Load(ctx context.Context) (*Snapshot, error) {
	var snap Snapshot
	if err := cache.GetJSON(ctx, s.client, snapshotKey, &snap); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

// Save replaces the stored snapshot.
func (s *RedisStore) Save(ctx context.Context, snap Snapshot) error {
	return cache.SetJSON(ctx, s.client, snapshotKey, snap, s.ttl)
}
