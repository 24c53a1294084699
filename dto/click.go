package dto

import "time"

// ClickInput carries everything the recorder needs from one inbound
// redirect/track request. At is optional and defaults to the recorder's
// clock, request handlers leave it zero.
type ClickInput struct {
	LinkHash   string    `json:"link_hash" validate:"required,min=1,max=16"`
	IP         string    `json:"ip" validate:"required,max=64"`
	UserAgent  string    `json:"user_agent" validate:"max=2048"`
	Referer    string    `json:"referer,omitempty" validate:"max=2048"`
	SessionID  string    `json:"session_id,omitempty" validate:"max=64"`
	SubID      string    `json:"sub_id,omitempty" validate:"max=128"`
	TrackingID *string   `json:"tracking_id,omitempty"`
	At         time.Time `json:"-"`
}

func (c ClickInput) Validate() error {
	return GetValidator().Struct(c)
}
