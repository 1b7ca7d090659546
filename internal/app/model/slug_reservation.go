package model

import "time"

// SlugReservation claims one slug of the global namespace for a link.
// The primary key is the only uniqueness domain shared by slugs and aliases.
type SlugReservation struct {
	Slug      string    `gorm:"primaryKey;size:30"`
	LinkID    string    `gorm:"size:36;not null;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
