package repository

import (
	"context"
	"time"

	"github.com/sifan077/linkpulse/internal/app/apperror"
	"github.com/sifan077/linkpulse/internal/app/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClickEventRepository defines the data access contract for click events.
type ClickEventRepository interface {
	// Record appends event and increments the link's click_count by one in a
	// single transaction. A repeated event ID yields apperror.ErrDuplicateClick
	// and leaves the counter untouched.
	Record(ctx context.Context, event *model.ClickEvent) error
	// ListByLink returns events in [from, to) ordered by occurrence. Nil bounds are open.
	ListByLink(ctx context.Context, linkID string, from, to *time.Time) ([]model.ClickEvent, error)
	CountByLink(ctx context.Context, linkID string) (int64, error)
}

type clickEventRepository struct {
	db *gorm.DB
}

// NewClickEventRepository returns a GORM-backed ClickEventRepository.
func NewClickEventRepository(db *gorm.DB) ClickEventRepository {
	return &clickEventRepository{db: db}
}

func (r *clickEventRepository) Record(ctx context.Context, event *model.ClickEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(event)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.ErrDuplicateClick
		}

		res = tx.Model(&model.Link{}).
			Where("id = ?", event.LinkID).
			UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperror.ErrLinkNotFound
		}
		return nil
	})
}

func (r *clickEventRepository) ListByLink(ctx context.Context, linkID string, from, to *time.Time) ([]model.ClickEvent, error) {
	q := r.db.WithContext(ctx).Where("link_id = ?", linkID)
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at < ?", *to)
	}

	var events []model.ClickEvent
	if err := q.Order("created_at ASC, id ASC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *clickEventRepository) CountByLink(ctx context.Context, linkID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ClickEvent{}).Where("link_id = ?", linkID).Count(&n).Error
	return n, err
}
