package model

import (
	"time"

	"gorm.io/gorm"
)

// Link describes one shortened URL stored in Postgres.
type Link struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	Slug        string         `json:"slug" gorm:"size:30;not null;uniqueIndex"`
	CustomSlug  *string        `json:"custom_slug,omitempty" gorm:"size:30;uniqueIndex"`
	OwnerID     string         `json:"owner_id" gorm:"size:64;not null;index"`
	OriginalURL string         `json:"original_url" gorm:"type:text;not null"`
	Title       string         `json:"title,omitempty" gorm:"size:255"`
	IsActive    bool           `json:"is_active" gorm:"not null;default:true"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty" gorm:"index"`
	ClickCount  int64          `json:"click_count" gorm:"not null;default:0"`
	CreatedAt   time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// Expired reports whether the link has an expiry at or before now.
func (l *Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !now.Before(*l.ExpiresAt)
}

// Slugs returns every slug the link answers to.
func (l *Link) Slugs() []string {
	if l.CustomSlug == nil || *l.CustomSlug == "" {
		return []string{l.Slug}
	}
	return []string{l.Slug, *l.CustomSlug}
}
