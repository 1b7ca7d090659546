package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/linkpulse/config"
	"github.com/sifan077/linkpulse/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions(t *testing.T) {
	opts := Options(config.RedisConfig{})
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, readTimeout, opts.ReadTimeout)

	opts = Options(config.RedisConfig{Host: "cache", Port: 6380, DB: 2, Password: "pw"})
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "pw", opts.Password)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "linkpulse:link:abc123", Key("abc123"))
}

func TestNewLinkCache_DefaultTTL(t *testing.T) {
	c := NewLinkCache(nil, 0)
	assert.Equal(t, defaultCacheTTL, c.ttl)

	c = NewLinkCache(nil, 5*time.Second)
	assert.Equal(t, 5*time.Second, c.ttl)
}

func TestLinkCache_UnreachableServerIsNotAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewLinkCache(client, time.Minute)
	ctx := context.Background()

	_, err := cache.Get(ctx, "abc123")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)

	assert.Error(t, cache.Set(ctx, "abc123", &model.Link{ID: "l1", Slug: "abc123"}))
	assert.NoError(t, cache.Delete(ctx))
}
