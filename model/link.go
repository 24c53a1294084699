package model

import "time"

// AffiliateLink maps a short hash to a destination URL. The hash is assigned
// once at creation and never reused, links are deactivated rather than
// deleted. Counters are denormalized rollups mutated only through atomic
// increments.
type AffiliateLink struct {
	ID             string     `json:"id" gorm:"primaryKey;type:text;not null"`
	Hash           string     `json:"hash" gorm:"uniqueIndex;not null;size:16"`
	UserID         string     `json:"user_id" gorm:"not null;index;size:64"`
	DestinationURL string     `json:"destination_url" gorm:"not null;type:text"`
	ChannelID      *string    `json:"channel_id,omitempty" gorm:"index;size:64"`
	IsActive       bool       `json:"is_active" gorm:"default:true;not null"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`

	ClickCount       int64   `json:"click_count" gorm:"default:0;not null"`
	UniqueClickCount int64   `json:"unique_click_count" gorm:"default:0;not null"`
	ConversionCount  int64   `json:"conversion_count" gorm:"default:0;not null"`
	Revenue          float64 `json:"revenue" gorm:"default:0;not null"`

	CreatedAt time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null"`
}

// Usable reports whether the link may still be redirected through.
func (l *AffiliateLink) Usable(now time.Time) bool {
	if !l.IsActive {
		return false
	}
	if l.ExpiresAt != nil && now.After(*l.ExpiresAt) {
		return false
	}
	return true
}
