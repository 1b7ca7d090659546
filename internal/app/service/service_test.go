package service

import (
	"context"
	"testing"
	"time"

	"github.com/sifan077/linkpulse/internal/app/model"
	"github.com/sifan077/linkpulse/internal/app/repository"
	"github.com/sifan077/linkpulse/internal/app/slug"
	"github.com/stretchr/testify/require"
)

const testOwner = "owner-1"

type fixture struct {
	store     *repository.MemoryStore
	links     LinkService
	resolver  *Resolver
	recorder  *ClickRecorder
	analytics *Analytics
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store: repository.NewMemoryStore(),
		now:   time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.links = NewLinkService(LinkServiceDeps{
		Repo:     f.store,
		Registry: slug.NewRegistry(slug.RegistryConfig{}),
		Now:      clock,
	})
	f.resolver = NewResolver(ResolverDeps{Links: f.store, Now: clock, RetryBackoff: time.Millisecond})
	f.recorder = NewClickRecorder(f.store, nil, nil)
	f.recorder.now = clock
	f.analytics = NewAnalytics(AnalyticsDeps{Links: f.store, Clicks: f.store, Now: clock, RetryBackoff: time.Millisecond})
	return f
}

func (f *fixture) createLink(t *testing.T, input CreateLinkInput) *model.Link {
	t.Helper()
	if input.OwnerID == "" {
		input.OwnerID = testOwner
	}
	if input.OriginalURL == "" {
		input.OriginalURL = "https://example.com"
	}
	link, err := f.links.CreateLink(context.Background(), input)
	require.NoError(t, err)
	return link
}
