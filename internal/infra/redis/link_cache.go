package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/linkpulse/internal/app/model"
)

// ErrCacheMiss is returned when no cached link exists for a slug.
var ErrCacheMiss = errors.New("cache miss")

const (
	keyPrefix       = "linkpulse:link:"
	defaultCacheTTL = time.Minute
)

// LinkCache stores resolved link records keyed by slug.
type LinkCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLinkCache returns a cache whose entries expire after ttl.
func NewLinkCache(client *redis.Client, ttl time.Duration) *LinkCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &LinkCache{client: client, ttl: ttl}
}

// Key returns the redis key used for slug.
func Key(slug string) string {
	return keyPrefix + slug
}

func (c *LinkCache) Get(ctx context.Context, slug string) (*model.Link, error) {
	data, err := c.client.Get(ctx, Key(slug)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis: get %s: %w", slug, err)
	}

	var link model.Link
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("redis: decode %s: %w", slug, err)
	}
	return &link, nil
}

func (c *LinkCache) Set(ctx context.Context, slug string, link *model.Link) error {
	data, err := json.Marshal(link)
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", slug, err)
	}
	if err := c.client.Set(ctx, Key(slug), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", slug, err)
	}
	return nil
}

func (c *LinkCache) Delete(ctx context.Context, slugs ...string) error {
	if len(slugs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(slugs))
	for _, s := range slugs {
		keys = append(keys, Key(s))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: delete: %w", err)
	}
	return nil
}
