package services

import (
	"testing"
	"time"

	"github.com/jenz26/afflyt/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRefererTotality(t *testing.T) {
	cases := map[string]string{
		"":                                  "Direct",
		"   ":                               "Direct",
		"https://t.me/x":                    "Telegram",
		"https://telegram.me/channel":       "Telegram",
		"https://instagram.com/x":           "Instagram",
		"https://www.instagram.com/x":       "Instagram",
		"https://m.facebook.com/page":       "Facebook",
		"https://x.com/someone":             "X",
		"https://twitter.com/someone":       "Twitter",
		"https://youtu.be/abc":              "YouTube",
		"https://www.google.com/search?q=x": "Google",
		"https://www.google.it/search?q=x":  "Google",
		"https://duckduckgo.com/?q=x":       "DuckDuckGo",
		"https://example.org/x":             "Example",
		"https://blog.example.org/post":     "Example",
		"https://shop.example.com:8443/a":   "Example",
		"not a url at all":                  "Not a url at all",
	}

	for input, want := range cases {
		assert.Equal(t, want, NormalizeReferer(input), "input %q", input)
	}
}

func TestNormalizeRefererNeverEmpty(t *testing.T) {
	inputs := []string{"", "://", "http://", "....", "?", "https://", "%%%"}
	for _, input := range inputs {
		label := NormalizeReferer(input)
		assert.NotEmpty(t, label, "input %q", input)
	}
}

func TestHeatmapGridIsAlwaysDense(t *testing.T) {
	rows := []HeatmapRow{
		{DayOfWeek: 1, Hour: 9, Count: 4},
		{DayOfWeek: 1, Hour: 18, Count: 10},
		{DayOfWeek: 5, Hour: 21, Count: 10},
	}

	cells, peak := BuildHeatmapGrid(rows)

	require.Len(t, cells, 168)

	byKey := make(map[[2]int]int64)
	for _, cell := range cells {
		byKey[[2]int{cell.DayOfWeek, cell.Hour}] = cell.Count
	}
	assert.Equal(t, int64(4), byKey[[2]int{1, 9}])
	assert.Equal(t, int64(10), byKey[[2]int{1, 18}])
	assert.Equal(t, int64(0), byKey[[2]int{0, 0}])

	// Peak ties break on first-encountered grid order: Monday 18h beats
	// Friday 21h.
	require.NotNil(t, peak)
	assert.Equal(t, 1, peak.DayOfWeek)
	assert.Equal(t, 18, peak.Hour)
	assert.Equal(t, 1.0, peak.Intensity)
}

func TestHeatmapGridZeroActivity(t *testing.T) {
	cells, peak := BuildHeatmapGrid(nil)

	require.Len(t, cells, 168)
	assert.Nil(t, peak)

	for _, cell := range cells {
		assert.Zero(t, cell.Count)
		assert.Zero(t, cell.Intensity)
	}
}

func TestHeatmapGridIgnoresOutOfRangeRows(t *testing.T) {
	rows := []HeatmapRow{
		{DayOfWeek: 7, Hour: 0, Count: 99},
		{DayOfWeek: 0, Hour: 24, Count: 99},
		{DayOfWeek: -1, Hour: 5, Count: 99},
		{DayOfWeek: 2, Hour: 2, Count: 3},
	}

	cells, peak := BuildHeatmapGrid(rows)

	require.Len(t, cells, 168)
	require.NotNil(t, peak)
	assert.Equal(t, int64(3), peak.Count)
}

func TestMergeRefererRows(t *testing.T) {
	rows := []LabelCountRow{
		{Label: "https://t.me/deals", Count: 10},
		{Label: "https://t.me/other", Count: 5},
		{Label: "", Count: 8},
		{Label: "https://example.org/a", Count: 15},
	}

	merged := mergeRefererRows(rows)

	require.Len(t, merged, 3)
	assert.Equal(t, LabelCountRow{Label: "Telegram", Count: 15}, merged[0])
	assert.Equal(t, LabelCountRow{Label: "Example", Count: 15}, merged[1])
	assert.Equal(t, LabelCountRow{Label: shared.RefererDirect, Count: 8}, merged[2])
}

func TestFillTrendPointsZeroFillsDays(t *testing.T) {
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 7, 10, 0, 0, 0, time.UTC)

	rows := []TrendRow{
		{Bucket: "2025-06-02T00:00:00", Clicks: 5, UniqueClicks: 3},
		{Bucket: "2025-06-05T00:00:00", Clicks: 2, UniqueClicks: 2},
	}

	points := fillTrendPoints(rows, since, now, "day")

	require.Len(t, points, 7)
	assert.Equal(t, "2025-06-01T00:00:00", points[0].Bucket)
	assert.Zero(t, points[0].Clicks)
	assert.Equal(t, int64(5), points[1].Clicks)
	assert.Equal(t, int64(3), points[1].UniqueClicks)
	assert.Zero(t, points[2].Clicks)
	assert.Equal(t, int64(2), points[4].Clicks)

	// Ascending bucket order.
	for i := 1; i < len(points); i++ {
		assert.Less(t, points[i-1].Bucket, points[i].Bucket)
	}
}

func TestFillTrendPointsCoarseBucketsPassThrough(t *testing.T) {
	rows := []TrendRow{
		{Bucket: "2025-06-01T00:00:00", Clicks: 7, UniqueClicks: 4},
	}

	points := fillTrendPoints(rows, time.Now().AddDate(0, 0, -30), time.Now(), "week")

	require.Len(t, points, 1)
	assert.Equal(t, int64(7), points[0].Clicks)
}

func TestNormalizeWindowDays(t *testing.T) {
	assert.Equal(t, 7, normalizeWindowDays(7))
	assert.Equal(t, 365, normalizeWindowDays(365))
	assert.Equal(t, 30, normalizeWindowDays(0))
	assert.Equal(t, 30, normalizeWindowDays(-5))
	assert.Equal(t, 30, normalizeWindowDays(42))
}
