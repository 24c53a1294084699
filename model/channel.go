package model

import "time"

// Channel groups links for a user (a tag, campaign or traffic source).
// Counters mirror the per-link ones so dashboards read a single row.
type Channel struct {
	ID     string `json:"id" gorm:"primaryKey;type:text;not null"`
	UserID string `json:"user_id" gorm:"not null;index;size:64"`
	Name   string `json:"name" gorm:"not null;size:128"`

	ClickCount       int64 `json:"click_count" gorm:"default:0;not null"`
	UniqueClickCount int64 `json:"unique_click_count" gorm:"default:0;not null"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}
