package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// ResponseCache implements domain.ResponseCache so every server instance
// shares one freshness window per upstream endpoint.
type ResponseCache struct {
	rdb *redis.Client
}

// NewResponseCache creates a ResponseCache backed by the given Client.
func NewResponseCache(c *Client) *ResponseCache {
	return &ResponseCache{rdb: c.Underlying()}
}

func responseKey(key string) string {
	return keyPrefix + "resp:" + key
}

// Get returns the cached body, or domain.ErrNotFound on a miss.
func (rc *ResponseCache) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := rc.rdb.Get(ctx, responseKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get response %s: %w", key, err)
	}
	return body, nil
}

// Set stores body under key for ttl.
func (rc *ResponseCache) Set(ctx context.Context, key string, body []byte, ttl time.Duration) error {
	if err := rc.rdb.Set(ctx, responseKey(key), body, ttl).Err(); err != nil {
		return fmt.Errorf("redis: set response %s: %w", key, err)
	}
	return nil
}

var _ domain.ResponseCache = (*ResponseCache)(nil)
