package navcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/redis/go-redis/v9"
	"github.com/varunjain2021/guido-1-sub002/pkg/navigation"
)

const defaultExpiration = 2 * time.Hour

const currentKey = "navigation_state:current"

var ErrNoSnapshot = errors.New("no navigation snapshot cached")

// SnapshotCache keeps the latest coordinator snapshot in redis, both as the
// current session and under its journey id.
type SnapshotCache struct {
	cache *cache.Cache[string]
}

func NewSnapshotCache(client *redis.Client, expiration time.Duration) *SnapshotCache {
	if expiration <= 0 {
		expiration = defaultExpiration
	}

	redisStore := redisstore.NewRedis(client, store.WithExpiration(expiration))

	return &SnapshotCache{
		cache: cache.New[string](redisStore),
	}
}

func journeyKey(journeyID string) string {
	return fmt.Sprintf("navigation_state:%s", journeyID)
}

func (c *SnapshotCache) Set(ctx context.Context, snapshot navigation.Snapshot) error {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	if err := c.cache.Set(ctx, currentKey, string(encoded)); err != nil {
		return err
	}

	if snapshot.JourneyID != "" {
		return c.cache.Set(ctx, journeyKey(snapshot.JourneyID), string(encoded))
	}

	return nil
}

func (c *SnapshotCache) Current(ctx context.Context) (*navigation.Snapshot, error) {
	return c.get(ctx, currentKey)
}

func (c *SnapshotCache) Journey(ctx context.Context, journeyID string) (*navigation.Snapshot, error) {
	return c.get(ctx, journeyKey(journeyID))
}

func (c *SnapshotCache) get(ctx context.Context, key string) (*navigation.Snapshot, error) {
	cached, err := c.cache.Get(ctx, key)
	if errors.Is(err, redis.Nil) || errors.Is(err, store.NotFound{}) {
		return nil, ErrNoSnapshot
	} else if err != nil {
		return nil, err
	}

	if cached == "" {
		return nil, ErrNoSnapshot
	}

	var snapshot navigation.Snapshot
	if err := json.Unmarshal([]byte(cached), &snapshot); err != nil {
		return nil, err
	}

	return &snapshot, nil
}
