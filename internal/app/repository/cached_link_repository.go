package repository

import (
	"context"
	"errors"

	"github.com/sifan077/linkpulse/internal/app/model"
	infraRedis "github.com/sifan077/linkpulse/internal/infra/redis"
	"go.uber.org/zap"
)

// LinkCache is the slug-keyed cache consulted before the store on reads.
type LinkCache interface {
	Get(ctx context.Context, slug string) (*model.Link, error)
	Set(ctx context.Context, slug string, link *model.Link) error
	Delete(ctx context.Context, slugs ...string) error
}

var _ LinkCache = (*infraRedis.LinkCache)(nil)

type cachedLinkRepository struct {
	LinkRepository
	cache  LinkCache
	logger *zap.Logger
}

// NewCachedLinkRepository wraps next with a read-through slug cache. Cache
// failures are logged and fall through to next; they never fail a request.
func NewCachedLinkRepository(next LinkRepository, cache LinkCache, logger *zap.Logger) LinkRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedLinkRepository{LinkRepository: next, cache: cache, logger: logger}
}

func (r *cachedLinkRepository) GetBySlug(ctx context.Context, slug string) (*model.Link, error) {
	link, err := r.cache.Get(ctx, slug)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, infraRedis.ErrCacheMiss) {
		r.logger.Warn("link cache read failed", zap.String("slug", slug), zap.Error(err))
	}

	link, err = r.LinkRepository.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, slug, link); err != nil {
		r.logger.Warn("link cache write failed", zap.String("slug", slug), zap.Error(err))
	}
	return link, nil
}

func (r *cachedLinkRepository) Update(ctx context.Context, link *model.Link) error {
	stale := r.slugsOf(ctx, link.ID)
	if err := r.LinkRepository.Update(ctx, link); err != nil {
		return err
	}
	r.invalidate(ctx, append(stale, link.Slugs()...)...)
	return nil
}

func (r *cachedLinkRepository) Delete(ctx context.Context, id string) error {
	stale := r.slugsOf(ctx, id)
	if err := r.LinkRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx, stale...)
	return nil
}

func (r *cachedLinkRepository) slugsOf(ctx context.Context, id string) []string {
	current, err := r.LinkRepository.GetByID(ctx, id)
	if err != nil {
		return nil
	}
	return current.Slugs()
}

func (r *cachedLinkRepository) invalidate(ctx context.Context, slugs ...string) {
	if err := r.cache.Delete(ctx, slugs...); err != nil {
		r.logger.Warn("link cache invalidation failed", zap.Strings("slugs", slugs), zap.Error(err))
	}
}
