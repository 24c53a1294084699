package dto

import (
	"time"

	"github.com/jenz26/afflyt/model"
)

type CreateLinkRequest struct {
	DestinationURL string     `json:"destination_url" validate:"required,url,max=2048"`
	ChannelID      *string    `json:"channel_id,omitempty" validate:"omitempty,max=64"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
}

func (r CreateLinkRequest) Validate() error {
	return GetValidator().Struct(r)
}

type CreateLinkResponse struct {
	Link *model.AffiliateLink `json:"link"`
}

type ListLinksResponse struct {
	Links []model.AffiliateLink `json:"links"`
	Total int64                 `json:"total"`
}
