package model

import "time"

// ClickEvent is one observed click on a short link. IsUnique is computed once
// at creation against the trailing 24h of events for the same IP and hash,
// and never revised afterwards.
type ClickEvent struct {
	ID         string  `json:"id" gorm:"primaryKey;type:text;not null"`
	LinkHash   string  `json:"link_hash" gorm:"not null;index;index:idx_click_ip_hash,priority:2;size:16"`
	UserID     string  `json:"user_id" gorm:"not null;index;size:64"`
	IP         string  `json:"ip" gorm:"not null;index:idx_click_ip_hash,priority:1;size:64"`
	UserAgent  string  `json:"user_agent" gorm:"type:text"`
	Referer    string  `json:"referer,omitempty" gorm:"type:text"`
	Country    string  `json:"country,omitempty" gorm:"size:64"`
	Device     string  `json:"device,omitempty" gorm:"size:32"`
	Browser    string  `json:"browser,omitempty" gorm:"size:64"`
	IsUnique   bool    `json:"is_unique" gorm:"not null"`
	SessionID  string  `json:"session_id,omitempty" gorm:"size:64"`
	SubID      string  `json:"sub_id,omitempty" gorm:"size:128"`
	TrackingID *string `json:"tracking_id,omitempty" gorm:"index;size:64"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;index"`
}
