package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by GetJSON when the key is absent.
var ErrMiss = errors.New("platform/cache: miss")

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// SetJSON stores v as JSON under key. A zero ttl keeps the key forever.
func SetJSON(ctx context.Context, client redis.Cmdable, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("platform/cache: encode %s: %w", key, err)
	}
	return client.Set(ctx, key, raw, ttl).Err()
}

// GetJSON loads key into dest, returning ErrMiss when it does not exist.
func GetJSON(ctx context.Context, client redis.Cmdable, key string, dest any) error {
	raw, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("platform/cache: decode %s: %w", key, err)
	}
	return nil
}
