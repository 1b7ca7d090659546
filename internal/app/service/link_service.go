package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/model"
	"github.com/sifan077/linkpulse/internal/app/repository"
	"github.com/sifan077/linkpulse/internal/app/slug"
	infraPrometheus "github.com/sifan077/linkpulse/internal/infra/prometheus"
	"go.uber.org/zap"
)

const maxTitleLength = 255

// LinkService defines owner-facing operations on links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	GetLink(ctx context.Context, ownerID, id string) (*model.Link, error)
	ListLinks(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error)
	UpdateLink(ctx context.Context, ownerID, id string, input UpdateLinkInput) (*model.Link, error)
	DeleteLink(ctx context.Context, ownerID, id string) error
}

// LinkServiceDeps groups what a LinkService needs.
type LinkServiceDeps struct {
	Repo     repository.LinkRepository
	Registry *slug.Registry
	Logger   *zap.Logger
	Metrics  *infraPrometheus.Metrics
	Now      func() time.Time
}

type linkService struct {
	repo     repository.LinkRepository
	registry *slug.Registry
	logger   *zap.Logger
	metrics  *infraPrometheus.Metrics
	now      func() time.Time
}

// NewLinkService returns a service implementation backed by the given repository.
func NewLinkService(deps LinkServiceDeps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = slug.NewRegistry(slug.RegistryConfig{Logger: logger, Metrics: deps.Metrics})
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &linkService{
		repo:     deps.Repo,
		registry: registry,
		logger:   logger,
		metrics:  deps.Metrics,
		now:      now,
	}
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	OwnerID     string
	OriginalURL string
	CustomSlug  string
	Title       string
	ExpiresAt   *time.Time
}

// UpdateLinkInput captures fields an owner can change. Nil fields are left as is.
// An empty CustomSlug removes the alias; ClearExpiry removes any expiry.
type UpdateLinkInput struct {
	URL         *string
	Title       *string
	Slug        *string
	CustomSlug  *string
	Active      *bool
	ExpiresAt   *time.Time
	ClearExpiry bool
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if strings.TrimSpace(input.OwnerID) == "" {
		return nil, apperror.NewValidationError("owner_id", "is required", apperror.ErrInvalidInput)
	}

	target, err := slug.NormalizeURL(input.OriginalURL)
	if err != nil {
		return nil, err
	}

	custom := slug.Normalize(input.CustomSlug)
	if custom != "" {
		if err := slug.Validate(custom); err != nil {
			return nil, err
		}
	}

	title, err := normalizeTitle(input.Title)
	if err != nil {
		return nil, err
	}

	link := &model.Link{
		ID:          uuid.NewString(),
		OwnerID:     input.OwnerID,
		OriginalURL: target,
		Title:       title,
		IsActive:    true,
		ExpiresAt:   input.ExpiresAt,
	}

	allocated, err := s.registry.Allocate(ctx, custom, func(ctx context.Context, candidate string) error {
		link.Slug = candidate
		return s.repo.Create(ctx, link)
	})
	if err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}
	link.Slug = allocated

	s.metrics.LinkCreated()
	s.logger.Info("link created",
		zap.String("link_id", link.ID),
		zap.String("slug", link.Slug),
		zap.String("owner_id", link.OwnerID),
	)
	return link, nil
}

func (s *linkService) GetLink(ctx context.Context, ownerID, id string) (*model.Link, error) {
	link, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	if link.OwnerID != ownerID {
		return nil, fmt.Errorf("get link: %w", apperror.ErrForbidden)
	}
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	links, err := s.repo.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *linkService) UpdateLink(ctx context.Context, ownerID, id string, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.GetLink(ctx, ownerID, id)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}

	if input.URL != nil {
		target, err := slug.NormalizeURL(*input.URL)
		if err != nil {
			return nil, err
		}
		link.OriginalURL = target
	}
	if input.Title != nil {
		title, err := normalizeTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		link.Title = title
	}
	if input.Slug != nil {
		next := slug.Normalize(*input.Slug)
		if err := slug.ValidateField("slug", next); err != nil {
			return nil, err
		}
		link.Slug = next
	}
	if input.CustomSlug != nil {
		alias := slug.Normalize(*input.CustomSlug)
		switch {
		case alias == "" || alias == link.Slug:
			link.CustomSlug = nil
		default:
			if err := slug.Validate(alias); err != nil {
				return nil, err
			}
			link.CustomSlug = &alias
		}
	}
	if link.CustomSlug != nil && *link.CustomSlug == link.Slug {
		link.CustomSlug = nil
	}
	if input.Active != nil {
		link.IsActive = *input.Active
	}
	if input.ClearExpiry {
		link.ExpiresAt = nil
	} else if input.ExpiresAt != nil {
		link.ExpiresAt = input.ExpiresAt
	}

	if err := s.repo.Update(ctx, link); err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}
	s.registry.MarkTaken(link.Slugs()...)

	s.logger.Info("link updated", zap.String("link_id", link.ID), zap.String("slug", link.Slug))
	return link, nil
}

func (s *linkService) DeleteLink(ctx context.Context, ownerID, id string) error {
	if _, err := s.GetLink(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	s.logger.Info("link deleted", zap.String("link_id", id))
	return nil
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if len(title) > maxTitleLength {
		return "", apperror.NewValidationError("title",
			fmt.Sprintf("must be at most %d characters", maxTitleLength), apperror.ErrInvalidInput)
	}
	return title, nil
}
