package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// IHandleCache caches handle to account-identifier resolutions so the embed
// resolver does not hit the remote directory for every quote permalink.
type IHandleCache interface {
	Get(ctx context.Context, handle string) (string, bool)
	Set(ctx context.Context, handle, did string)
}

type HandleCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewHandleCache(client *redis.Client, ttl time.Duration) IHandleCache {
	return &HandleCache{client: client, ttl: ttl}
}

func (c *HandleCache) Get(ctx context.Context, handle string) (string, bool) {
	if c.client == nil {
		return "", false
	}
	did, err := c.client.Get(ctx, "handle:"+handle).Result()
	if err != nil {
		return "", false
	}
	return did, did != ""
}

func (c *HandleCache) Set(ctx context.Context, handle, did string) {
	if c.client == nil {
		return
	}
	// Cache write failures are invisible to callers; the resolver just pays
	// another directory lookup next time.
	_ = c.client.Set(ctx, "handle:"+handle, did, c.ttl).Err()
}
