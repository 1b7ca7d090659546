package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sifan077/linkpulse/internal/app/model"
	"github.com/sifan077/linkpulse/internal/app/repository"
	"go.uber.org/zap"
)

// AnalyticsDeps groups what Analytics needs.
type AnalyticsDeps struct {
	Links        repository.LinkRepository
	Clicks       repository.ClickEventRepository
	Logger       *zap.Logger
	RetryBackoff time.Duration
	Now          func() time.Time
}

// Analytics builds link summaries from the click log.
type Analytics struct {
	links   repository.LinkRepository
	clicks  repository.ClickEventRepository
	logger  *zap.Logger
	backoff time.Duration
	now     func() time.Time
}

func NewAnalytics(deps AnalyticsDeps) *Analytics {
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
	return &Analytics{
		links:   deps.Links,
		clicks:  deps.Clicks,
		logger:  logger,
		backoff: backoff,
		now:     now,
	}
}

// Summarize reads every event for linkID within the range and aggregates them.
func (a *Analytics) Summarize(ctx context.Context, linkID string, opts SummaryOptions) (*Summary, error) {
	if _, err := retryOnce(ctx, a.backoff, func(ctx context.Context) (*model.Link, error) {
		return a.links.GetByID(ctx, linkID)
	}); err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	events, err := retryOnce(ctx, a.backoff, func(ctx context.Context) ([]model.ClickEvent, error) {
		return a.clicks.ListByLink(ctx, linkID, opts.From, opts.To)
	})
	if err != nil {
		a.logger.Error("failed to load click events", zap.String("link_id", linkID), zap.Error(err))
		return nil, fmt.Errorf("summarize: %w", err)
	}

	return Aggregate(linkID, events, opts, a.now()), nil
}
