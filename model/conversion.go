package model

import "time"

// Conversion records revenue attributed to a tracked click.
type Conversion struct {
	ID         string  `json:"id" gorm:"primaryKey;type:text;not null"`
	UserID     string  `json:"user_id" gorm:"not null;index:idx_conversion_user_time,priority:1;size:64"`
	LinkHash   string  `json:"link_hash" gorm:"not null;index;size:16"`
	TrackingID string  `json:"tracking_id,omitempty" gorm:"index;size:64"`
	Revenue    float64 `json:"revenue" gorm:"not null"`
	Status     string  `json:"status" gorm:"default:'pending';size:32"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;index:idx_conversion_user_time,priority:2"`
}
