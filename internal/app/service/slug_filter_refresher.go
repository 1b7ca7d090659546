package service

import (
	"context"
	"time"

	"github.com/sifan077/linkpulse/internal/app/slug"
	"go.uber.org/zap"
)

const (
	defaultRefreshInterval = 5 * time.Minute
	refreshPageSize        = 1000
)

type slugLister interface {
	ListSlugs(ctx context.Context, after string, limit int) ([]string, error)
}

// SlugFilterRefresher periodically loads reserved slugs into the registry's
// filter so an instance learns about slugs allocated elsewhere.
type SlugFilterRefresher struct {
	logger   *zap.Logger
	links    slugLister
	registry *slug.Registry
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

// NewSlugFilterRefresher creates a refresher that runs every interval.
func NewSlugFilterRefresher(logger *zap.Logger, links slugLister, registry *slug.Registry, interval time.Duration) *SlugFilterRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	return &SlugFilterRefresher{
		logger:   logger,
		links:    links,
		registry: registry,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start loads the filter once and then keeps it fresh in the background.
func (r *SlugFilterRefresher) Start() {
	go r.run()
}

// Stop stops the periodic refresh.
func (r *SlugFilterRefresher) Stop() {
	close(r.stopChan)
	<-r.done
}

func (r *SlugFilterRefresher) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh()
	for {
		select {
		case <-ticker.C:
			r.refresh()
		case <-r.stopChan:
			r.logger.Info("slug filter refresher stopped")
			return
		}
	}
}

func (r *SlugFilterRefresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), r.interval)
	defer cancel()

	n, err := r.Refresh(ctx)
	if err != nil {
		r.logger.Error("failed to refresh slug filter", zap.Int("loaded", n), zap.Error(err))
		return
	}
	r.logger.Debug("slug filter refreshed", zap.Int("slugs", n))
}

// Refresh pages through every reservation and marks it taken. It returns the
// number of slugs loaded.
func (r *SlugFilterRefresher) Refresh(ctx context.Context) (int, error) {
	total := 0
	after := ""
	for {
		page, err := r.links.ListSlugs(ctx, after, refreshPageSize)
		if err != nil {
			return total, err
		}
		if len(page) == 0 {
			return total, nil
		}
		r.registry.MarkTaken(page...)
		total += len(page)
		if len(page) < refreshPageSize {
			return total, nil
		}
		after = page[len(page)-1]
	}
}
