package audience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPreviewCache keeps previews in Redis for a short TTL so repeated
// edits in the segment editor do not rescan the customer table.
type RedisPreviewCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisPreviewCache(client redis.Cmdable, ttl time.Duration) *RedisPreviewCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisPreviewCache{client: client, ttl: ttl}
}

func (c *RedisPreviewCache) Get(ctx context.Context, key string) (*Preview, bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	var p Preview
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("decode cached preview: %w", err)
	}
	return &p, true, nil
}

func (c *RedisPreviewCache) Set(ctx context.Context, key string, p *Preview) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}
