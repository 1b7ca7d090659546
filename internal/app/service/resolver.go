package service

import (
	"context"
	"errors"
	"time"

	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/model"
	"github.com/sifan077/linkpulse/internal/app/repository"
	"github.com/sifan077/linkpulse/internal/app/slug"
	infraPrometheus "github.com/sifan077/linkpulse/internal/infra/prometheus"
	"go.uber.org/zap"
)

// Resolution outcomes reported to metrics.
const (
	OutcomeResolved = "resolved"
	OutcomeNotFound = "not_found"
	OutcomeDisabled = "disabled"
	OutcomeExpired  = "expired"
	OutcomeError    = "error"
)

// Resolution is a slug that may be followed.
type Resolution struct {
	LinkID    string `json:"link_id"`
	Slug      string `json:"slug"`
	TargetURL string `json:"target_url"`
}

// ResolverDeps groups what a Resolver needs.
type ResolverDeps struct {
	Links        repository.LinkRepository
	Logger       *zap.Logger
	Metrics      *infraPrometheus.Metrics
	RetryBackoff time.Duration
	Now          func() time.Time
}

// Resolver turns a slug into a redirect target. It never writes.
type Resolver struct {
	links   repository.LinkRepository
	logger  *zap.Logger
	metrics *infraPrometheus.Metrics
	backoff time.Duration
	now     func() time.Time
}

func NewResolver(deps ResolverDeps) *Resolver {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backoff := deps.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		links:   deps.Links,
		logger:  logger,
		metrics: deps.Metrics,
		backoff: backoff,
		now:     now,
	}
}

// Resolve looks the slug up as either a primary slug or a custom alias.
// Disabled and expired links come back as *apperror.ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, raw string) (*Resolution, error) {
	start := time.Now()
	res, err := r.resolve(ctx, raw)
	r.metrics.ObserveResolution(outcomeOf(err), time.Since(start))
	return res, err
}

func (r *Resolver) resolve(ctx context.Context, raw string) (*Resolution, error) {
	s := slug.Normalize(raw)
	if slug.Validate(s) != nil {
		return nil, apperror.ErrLinkNotFound
	}

	link, err := retryOnce(ctx, r.backoff, func(ctx context.Context) (*model.Link, error) {
		return r.links.GetBySlug(ctx, s)
	})
	if err != nil {
		if !errors.Is(err, apperror.ErrLinkNotFound) {
			r.logger.Error("resolve lookup failed", zap.String("slug", s), zap.Error(err))
		}
		return nil, err
	}

	if !link.IsActive {
		return nil, &apperror.ResolutionError{Kind: apperror.ErrLinkDisabled, Link: link}
	}
	if link.Expired(r.now()) {
		return nil, &apperror.ResolutionError{Kind: apperror.ErrLinkExpired, Link: link}
	}

	return &Resolution{
		LinkID:    link.ID,
		Slug:      s,
		TargetURL: link.OriginalURL,
	}, nil
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeResolved
	case errors.Is(err, apperror.ErrLinkNotFound):
		return OutcomeNotFound
	case errors.Is(err, apperror.ErrLinkDisabled):
		return OutcomeDisabled
	case errors.Is(err, apperror.ErrLinkExpired):
		return OutcomeExpired
	default:
		return OutcomeError
	}
}
