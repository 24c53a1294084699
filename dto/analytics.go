package dto

// TrendPoint is one time bucket of a click trend, bucket keys are formatted
// timestamps sorted ascending.
type TrendPoint struct {
	Bucket       string `json:"bucket"`
	Clicks       int64  `json:"clicks"`
	UniqueClicks int64  `json:"unique_clicks"`
}

type TrendResponse struct {
	WindowDays int          `json:"window_days"`
	Bucket     string       `json:"bucket"`
	Points     []TrendPoint `json:"points"`
}

// DistributionEntry is one ranked slice of a categorical breakdown.
// Percentage is derived from raw counts at query time, never stored.
type DistributionEntry struct {
	Label      string  `json:"label"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type DistributionResponse struct {
	Dimension  string              `json:"dimension"`
	WindowDays int                 `json:"window_days"`
	Total      int64               `json:"total"`
	Entries    []DistributionEntry `json:"entries"`
}

// HeatmapCell is one hour-of-day x day-of-week bucket. Intensity is the cell
// count normalized against the grid maximum.
type HeatmapCell struct {
	DayOfWeek int     `json:"day_of_week"`
	Hour      int     `json:"hour"`
	Count     int64   `json:"count"`
	Intensity float64 `json:"intensity"`
}

type HeatmapResponse struct {
	WindowDays int           `json:"window_days"`
	Cells      []HeatmapCell `json:"cells"`
	Peak       *HeatmapCell  `json:"peak,omitempty"`
}

type RevenuePoint struct {
	Bucket      string  `json:"bucket"`
	Conversions int64   `json:"conversions"`
	Revenue     float64 `json:"revenue"`
}

type RevenueTrendResponse struct {
	WindowDays int            `json:"window_days"`
	Points     []RevenuePoint `json:"points"`
}
