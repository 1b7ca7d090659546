//go:build integration

package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/model"
	infraPostgres "github.com/sifan077/linkpulse/internal/infra/postgres"
	infraRedis "github.com/sifan077/linkpulse/internal/infra/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Run with: go test -tags integration ./internal/app/repository/...

func newPostgresStores(t *testing.T) stores {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("linkpulse"),
		tcpostgres.WithUsername("linkpulse"),
		tcpostgres.WithPassword("linkpulse"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         infraPostgres.NewGormLogger(zap.NewNop()),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, infraPostgres.AutoMigrate(ctx, db, &model.Link{}, &model.SlugReservation{}, &model.ClickEvent{}))
	return stores{links: NewLinkRepository(db), clicks: NewClickEventRepository(db)}
}

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestPostgres_ConcurrentCustomSlugHasOneWinner(t *testing.T) {
	s := newPostgresStores(t)
	ctx := context.Background()

	const n = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		clashes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			link := newLink(uuid.NewString()[:8])
			link.CustomSlug = strPtr("launch")
			err := s.links.Create(ctx, link)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperror.ErrSlugTaken):
				clashes++
			default:
				t.Errorf("unexpected create error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, clashes)

	winner, err := s.links.GetBySlug(ctx, "launch")
	require.NoError(t, err)
	assert.Equal(t, "launch", *winner.CustomSlug)
}

func TestPostgres_ConcurrentRecordsMatchClickCount(t *testing.T) {
	s := newPostgresStores(t)
	ctx := context.Background()

	link := newLink("hot123")
	require.NoError(t, s.links.Create(ctx, link))

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.clicks.Record(ctx, &model.ClickEvent{
				ID:         uuid.NewString(),
				LinkID:     link.ID,
				OccurredAt: time.Now().UTC(),
				Referrer:   model.DirectReferrer,
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := s.links.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), stored.ClickCount)

	count, err := s.clicks.CountByLink(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(n), count)
}

func TestPostgres_DuplicateEventIsRejected(t *testing.T) {
	s := newPostgresStores(t)
	ctx := context.Background()

	link := newLink("dup123")
	require.NoError(t, s.links.Create(ctx, link))

	event := &model.ClickEvent{ID: uuid.NewString(), LinkID: link.ID, OccurredAt: time.Now().UTC(), Referrer: model.DirectReferrer}
	require.NoError(t, s.clicks.Record(ctx, event))
	assert.ErrorIs(t, s.clicks.Record(ctx, event), apperror.ErrDuplicateClick)

	stored, err := s.links.GetByID(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.ClickCount)
}

func TestRedis_LinkCacheRoundTripAndInvalidation(t *testing.T) {
	s := newPostgresStores(t)
	client := newRedisClient(t)
	ctx := context.Background()

	cache := infraRedis.NewLinkCache(client, time.Minute)
	links := NewCachedLinkRepository(s.links, cache, zap.NewNop())

	link := newLink("cached")
	require.NoError(t, links.Create(ctx, link))

	_, err := cache.Get(ctx, "cached")
	assert.ErrorIs(t, err, infraRedis.ErrCacheMiss)

	got, err := links.GetBySlug(ctx, "cached")
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)

	hit, err := cache.Get(ctx, "cached")
	require.NoError(t, err)
	assert.Equal(t, link.ID, hit.ID)

	ttl, err := client.TTL(ctx, infraRedis.Key("cached")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	link.IsActive = false
	require.NoError(t, links.Update(ctx, link))
	_, err = cache.Get(ctx, "cached")
	assert.ErrorIs(t, err, infraRedis.ErrCacheMiss)

	got, err = links.GetBySlug(ctx, "cached")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
}
