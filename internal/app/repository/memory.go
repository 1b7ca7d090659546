package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/model"
)

var (
	_ LinkRepository       = (*MemoryStore)(nil)
	_ ClickEventRepository = (*MemoryStore)(nil)
)

// MemoryStore keeps links, reservations and click events in process memory.
// A single mutex makes every operation atomic, which gives it the same
// insert-if-absent and increment guarantees as the SQL store.
type MemoryStore struct {
	mu           sync.RWMutex
	links        map[string]*model.Link
	reservations map[string]string
	events       map[string][]model.ClickEvent
	eventIDs     map[string]struct{}
	now          func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links:        make(map[string]*model.Link),
		reservations: make(map[string]string),
		events:       make(map[string][]model.ClickEvent),
		eventIDs:     make(map[string]struct{}),
		now:          time.Now,
	}
}

func (m *MemoryStore) Create(_ context.Context, link *model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	for _, s := range link.Slugs() {
		if _, taken := m.reservations[s]; taken {
			return apperror.ErrSlugTaken
		}
	}
	for _, s := range link.Slugs() {
		m.reservations[s] = link.ID
	}

	now := m.now()
	if link.CreatedAt.IsZero() {
		link.CreatedAt = now
	}
	link.UpdatedAt = now
	stored := *link
	m.links[link.ID] = &stored
	return nil
}

func (m *MemoryStore) GetByID(_ context.Context, id string) (*model.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	link, ok := m.links[id]
	if !ok || link.DeletedAt.Valid {
		return nil, apperror.ErrLinkNotFound
	}
	out := *link
	return &out, nil
}

func (m *MemoryStore) GetBySlug(_ context.Context, slug string) (*model.Link, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.reservations[slug]
	if !ok {
		return nil, apperror.ErrLinkNotFound
	}
	link, ok := m.links[id]
	if !ok || link.DeletedAt.Valid {
		return nil, apperror.ErrLinkNotFound
	}
	out := *link
	return &out, nil
}

func (m *MemoryStore) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	m.mu.RLock()
	var owned []model.Link
	for _, link := range m.links {
		if link.OwnerID == ownerID && !link.DeletedAt.Valid {
			owned = append(owned, *link)
		}
	}
	m.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})

	if offset >= len(owned) {
		return []model.Link{}, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], nil
}

func (m *MemoryStore) Update(_ context.Context, link *model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.links[link.ID]
	if !ok || current.DeletedAt.Valid {
		return apperror.ErrLinkNotFound
	}

	for _, s := range link.Slugs() {
		if owner, taken := m.reservations[s]; taken && owner != link.ID {
			return apperror.ErrSlugTaken
		}
	}
	keep := make(map[string]bool)
	for _, s := range link.Slugs() {
		keep[s] = true
		m.reservations[s] = link.ID
	}
	for _, s := range current.Slugs() {
		if !keep[s] {
			delete(m.reservations, s)
		}
	}

	current.Slug = link.Slug
	current.CustomSlug = link.CustomSlug
	current.OriginalURL = link.OriginalURL
	current.Title = link.Title
	current.IsActive = link.IsActive
	current.ExpiresAt = link.ExpiresAt
	current.UpdatedAt = m.now()

	*link = *current
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	link, ok := m.links[id]
	if !ok || link.DeletedAt.Valid {
		return apperror.ErrLinkNotFound
	}
	link.DeletedAt.Time = m.now()
	link.DeletedAt.Valid = true
	return nil
}

func (m *MemoryStore) ListSlugs(_ context.Context, after string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}

	m.mu.RLock()
	slugs := make([]string, 0, len(m.reservations))
	for s := range m.reservations {
		if s > after {
			slugs = append(slugs, s)
		}
	}
	m.mu.RUnlock()

	sort.Strings(slugs)
	if len(slugs) > limit {
		slugs = slugs[:limit]
	}
	return slugs, nil
}

func (m *MemoryStore) Record(_ context.Context, event *model.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, seen := m.eventIDs[event.ID]; seen {
		return apperror.ErrDuplicateClick
	}
	link, ok := m.links[event.LinkID]
	if !ok || link.DeletedAt.Valid {
		return apperror.ErrLinkNotFound
	}

	m.eventIDs[event.ID] = struct{}{}
	m.events[event.LinkID] = append(m.events[event.LinkID], *event)
	link.ClickCount++
	return nil
}

func (m *MemoryStore) ListByLink(_ context.Context, linkID string, from, to *time.Time) ([]model.ClickEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.ClickEvent
	for _, e := range m.events[linkID] {
		if from != nil && e.OccurredAt.Before(*from) {
			continue
		}
		if to != nil && !e.OccurredAt.Before(*to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	return out, nil
}

func (m *MemoryStore) CountByLink(_ context.Context, linkID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.events[linkID])), nil
}
