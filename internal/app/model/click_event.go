package model

import "time"

// ClickEvent represents one redirect through a short link.
type ClickEvent struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	LinkID      string    `json:"link_id" gorm:"size:36;not null;index"`
	OccurredAt  time.Time `json:"occurred_at" gorm:"column:created_at;not null;index"`
	Device      string    `json:"device" gorm:"size:16"`
	Browser     string    `json:"browser" gorm:"size:16"`
	OS          string    `json:"os" gorm:"size:16"`
	Country     string    `json:"country,omitempty" gorm:"size:64"`
	City        string    `json:"city,omitempty" gorm:"size:128"`
	Referrer    string    `json:"referrer" gorm:"size:255;not null;default:'Direct'"`
	VisitorHash string    `json:"visitor_hash" gorm:"size:16;index"`
	UserAgent   string    `json:"user_agent,omitempty" gorm:"size:512"`
}

// DirectReferrer marks clicks that arrived without a referrer.
const DirectReferrer = "Direct"

// ClickMessage is the wire format published on the clicks stream.
type ClickMessage struct {
	EventID    string    `json:"event_id"`
	LinkID     string    `json:"link_id"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	Referrer   string    `json:"referrer,omitempty"`
	Country    string    `json:"country,omitempty"`
	City       string    `json:"city,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	ClickStreamName     = "CLICKS"
	ClickStreamSubject  = "clicks.events"
	ClickConsumerName   = "click-recorder"
	ClickStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
