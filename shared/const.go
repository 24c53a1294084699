package shared

const (
	UserID = "user_id"
	APIKey = "api_key"

	// Referer labels produced by analytics normalization.
	RefererDirect = "Direct"

	// Distribution dimensions.
	DimensionCountry = "country"
	DimensionDevice  = "device"
	DimensionReferer = "referer"
	DimensionSubID   = "sub_id"
)
