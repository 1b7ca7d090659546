package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LinkRepository defines the data access contract for short links.
type LinkRepository interface {
	// Create reserves every slug of link and inserts it in one transaction.
	// It returns apperror.ErrSlugTaken when any slug is already reserved.
	Create(ctx context.Context, link *model.Link) error
	GetByID(ctx context.Context, id string) (*model.Link, error)
	// GetBySlug matches the primary slug or the custom alias.
	GetBySlug(ctx context.Context, slug string) (*model.Link, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error)
	// Update persists mutable fields, moving slug reservations when slugs change.
	Update(ctx context.Context, link *model.Link) error
	// Delete soft-deletes the link; its slugs stay reserved.
	Delete(ctx context.Context, id string) error
	// ListSlugs pages through reserved slugs in lexical order after the given slug.
	ListSlugs(ctx context.Context, after string, limit int) ([]string, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	if link.ID == "" {
		link.ID = uuid.NewString()
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, s := range link.Slugs() {
			if err := reserve(tx, s, link.ID); err != nil {
				return err
			}
		}
		return tx.Create(link).Error
	})
	return translate(err)
}

// reserve inserts a reservation unless one exists. ON CONFLICT DO NOTHING
// keeps the surrounding Postgres transaction usable after a conflict.
func reserve(tx *gorm.DB, slug, linkID string) error {
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.SlugReservation{Slug: slug, LinkID: linkID})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var existing model.SlugReservation
	if err := tx.Where("slug = ?", slug).First(&existing).Error; err != nil {
		return err
	}
	if existing.LinkID == linkID {
		return nil
	}
	return apperror.ErrSlugTaken
}

func (r *linkRepository) GetByID(ctx context.Context, id string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&link).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

func (r *linkRepository) GetBySlug(ctx context.Context, slug string) (*model.Link, error) {
	var link model.Link
	if err := r.db.WithContext(ctx).
		Where("slug = ? OR custom_slug = ?", slug, slug).
		First(&link).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

func (r *linkRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var result []model.Link
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&result).Error; err != nil {
		return nil, err
	}

	return result, nil
}

func (r *linkRepository) Update(ctx context.Context, link *model.Link) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current model.Link
		if err := tx.Where("id = ?", link.ID).First(&current).Error; err != nil {
			return err
		}

		if err := moveReservations(tx, link.ID, current.Slugs(), link.Slugs()); err != nil {
			return err
		}

		result := tx.Model(&model.Link{}).
			Where("id = ?", link.ID).
			Updates(map[string]interface{}{
				"slug":         link.Slug,
				"custom_slug":  link.CustomSlug,
				"original_url": link.OriginalURL,
				"title":        link.Title,
				"is_active":    link.IsActive,
				"expires_at":   link.ExpiresAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperror.ErrLinkNotFound
		}

		return tx.Where("id = ?", link.ID).First(link).Error
	})
	return translate(err)
}

func moveReservations(tx *gorm.DB, linkID string, before, after []string) error {
	keep := make(map[string]bool, len(after))
	for _, s := range after {
		keep[s] = true
		if err := reserve(tx, s, linkID); err != nil {
			return err
		}
	}
	for _, s := range before {
		if keep[s] {
			continue
		}
		if err := tx.Where("slug = ? AND link_id = ?", s, linkID).
			Delete(&model.SlugReservation{}).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *linkRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Link{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.ErrLinkNotFound
	}
	return nil
}

func (r *linkRepository) ListSlugs(ctx context.Context, after string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	var slugs []string
	err := r.db.WithContext(ctx).
		Model(&model.SlugReservation{}).
		Where("slug > ?", after).
		Order("slug ASC").
		Limit(limit).
		Pluck("slug", &slugs).Error
	if err != nil {
		return nil, err
	}
	return slugs, nil
}

