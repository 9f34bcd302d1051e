package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// SnapshotKey is the cache entry holding the serialized full record set.
const SnapshotKey = "gold-prices"

// Redis is the shared read cache. It stores a single serialized snapshot of
// all price records under SnapshotKey with no TTL; the entry only goes away
// through explicit invalidation after a persisted change.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get returns the cached snapshot bytes. The second result reports whether
// the entry was present; a missing entry is not an error.
func (c *Redis) Get(ctx context.Context) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, SnapshotKey).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot cache: %w", err)
	}
	return b, true, nil
}

// Set stores the snapshot. Two concurrent cache-miss readers may both call
// Set; the overwrite is harmless as long as each value is a fully-formed
// snapshot.
func (c *Redis) Set(ctx context.Context, payload []byte) error {
	if err := c.client.Set(ctx, SnapshotKey, payload, 0).Err(); err != nil {
		return fmt.Errorf("failed to write snapshot cache: %w", err)
	}
	return nil
}

// Invalidate deletes the snapshot entry.
func (c *Redis) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, SnapshotKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate snapshot cache: %w", err)
	}
	return nil
}
