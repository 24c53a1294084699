package dto

import "github.com/jenz26/afflyt/model"

type RecordConversionRequest struct {
	LinkHash   string  `json:"link_hash" validate:"required,min=1,max=16"`
	TrackingID string  `json:"tracking_id,omitempty" validate:"max=64"`
	Revenue    float64 `json:"revenue" validate:"gte=0"`
}

func (r RecordConversionRequest) Validate() error {
	return GetValidator().Struct(r)
}

type RecordConversionResponse struct {
	Conversion *model.Conversion `json:"conversion"`
}
