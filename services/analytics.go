package services

import (
	"net/url"
	"sort"
	"strings"
	"time"

	appContext "github.com/cloakd/common/context"
	appServices "github.com/cloakd/common/services"
	"github.com/jenz26/afflyt/dto"
	"github.com/jenz26/afflyt/shared"
)

type AnalyticsService struct {
	appServices.DefaultService

	nowFn func() time.Time

	sqlSvc *PostgresService
}

const ANALYTICS_SVC = "analytics_svc"

// Trailing windows the dashboard exposes.
var allowedWindowDays = map[int]bool{1: true, 7: true, 30: true, 90: true, 365: true}

func (svc AnalyticsService) Id() string {
	return ANALYTICS_SVC
}

func (svc *AnalyticsService) Configure(ctx *appContext.Context) error {
	if svc.nowFn == nil {
		svc.nowFn = time.Now
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *AnalyticsService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	return nil
}

func normalizeWindowDays(days int) int {
	if allowedWindowDays[days] {
		return days
	}
	return 30
}

// ==================== TREND ====================

func (svc *AnalyticsService) GetTrend(userID string, windowDays int, bucket string) (*dto.TrendResponse, error) {
	windowDays = normalizeWindowDays(windowDays)
	if bucket == "" {
		bucket = "day"
	}

	now := svc.nowFn().UTC()
	since := now.AddDate(0, 0, -windowDays)

	rows, err := svc.sqlSvc.ClickTrendRows(userID, since, bucket)
	if err != nil {
		return nil, err
	}

	return &dto.TrendResponse{
		WindowDays: windowDays,
		Bucket:     bucket,
		Points:     fillTrendPoints(rows, since, now, bucket),
	}, nil
}

// fillTrendPoints materializes empty hour/day buckets as zero so charts get
// a continuous series. Coarser buckets pass through as stored.
func fillTrendPoints(rows []TrendRow, since, now time.Time, bucket string) []dto.TrendPoint {
	byBucket := make(map[string]TrendRow, len(rows))
	for _, row := range rows {
		byBucket[row.Bucket] = row
	}

	var step time.Duration
	switch bucket {
	case "hour":
		step = time.Hour
	case "day":
		step = 24 * time.Hour
	default:
		points := make([]dto.TrendPoint, 0, len(rows))
		for _, row := range rows {
			points = append(points, dto.TrendPoint{
				Bucket:       row.Bucket,
				Clicks:       row.Clicks,
				UniqueClicks: row.UniqueClicks,
			})
		}
		return points
	}

	points := make([]dto.TrendPoint, 0)
	for t := since.Truncate(step); !t.After(now); t = t.Add(step) {
		key := t.Format("2006-01-02T15:04:05")
		point := dto.TrendPoint{Bucket: key}
		if row, ok := byBucket[key]; ok {
			point.Clicks = row.Clicks
			point.UniqueClicks = row.UniqueClicks
		}
		points = append(points, point)
	}
	return points
}

// ==================== DISTRIBUTION ====================

func (svc *AnalyticsService) GetDistribution(userID, dimension string, windowDays int) (*dto.DistributionResponse, error) {
	windowDays = normalizeWindowDays(windowDays)
	since := svc.nowFn().UTC().AddDate(0, 0, -windowDays)

	rows, err := svc.sqlSvc.DistributionRows(userID, dimension, since)
	if err != nil {
		return nil, err
	}

	if dimension == shared.DimensionReferer {
		rows = mergeRefererRows(rows)
	}

	var total int64
	for _, row := range rows {
		total += row.Count
	}

	entries := make([]dto.DistributionEntry, 0, len(rows))
	for _, row := range rows {
		label := row.Label
		if label == "" {
			label = "Unknown"
		}

		percentage := 0.0
		if total > 0 {
			percentage = float64(row.Count) / float64(total) * 100
		}

		entries = append(entries, dto.DistributionEntry{
			Label:      label,
			Count:      row.Count,
			Percentage: percentage,
		})
	}

	return &dto.DistributionResponse{
		Dimension:  dimension,
		WindowDays: windowDays,
		Total:      total,
		Entries:    entries,
	}, nil
}

// mergeRefererRows folds raw referer URLs into normalized labels and
// re-ranks the merged counts descending, earlier labels win ties.
func mergeRefererRows(rows []LabelCountRow) []LabelCountRow {
	counts := make(map[string]int64)
	order := make([]string, 0)

	for _, row := range rows {
		label := NormalizeReferer(row.Label)
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label] += row.Count
	}

	merged := make([]LabelCountRow, 0, len(order))
	for _, label := range order {
		merged = append(merged, LabelCountRow{Label: label, Count: counts[label]})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Count > merged[j].Count
	})
	return merged
}

// ==================== HEATMAP ====================

func (svc *AnalyticsService) GetHeatmap(userID string, windowDays int) (*dto.HeatmapResponse, error) {
	windowDays = normalizeWindowDays(windowDays)
	since := svc.nowFn().UTC().AddDate(0, 0, -windowDays)

	rows, err := svc.sqlSvc.HeatmapRows(userID, since)
	if err != nil {
		return nil, err
	}

	cells, peak := BuildHeatmapGrid(rows)
	return &dto.HeatmapResponse{
		WindowDays: windowDays,
		Cells:      cells,
		Peak:       peak,
	}, nil
}

// BuildHeatmapGrid densifies sparse (dow, hour) counts into the full 24x7
// grid. Absent buckets become zero cells, intensity is normalized against
// the grid maximum (all zeros when there is no activity), and peak is the
// first-encountered highest cell in grid order.
func BuildHeatmapGrid(rows []HeatmapRow) ([]dto.HeatmapCell, *dto.HeatmapCell) {
	var grid [7][24]int64
	var max int64

	for _, row := range rows {
		if row.DayOfWeek < 0 || row.DayOfWeek > 6 || row.Hour < 0 || row.Hour > 23 {
			continue
		}
		grid[row.DayOfWeek][row.Hour] = row.Count
		if row.Count > max {
			max = row.Count
		}
	}

	cells := make([]dto.HeatmapCell, 0, 7*24)
	var peak *dto.HeatmapCell

	for dow := 0; dow < 7; dow++ {
		for hour := 0; hour < 24; hour++ {
			count := grid[dow][hour]

			intensity := 0.0
			if max > 0 {
				intensity = float64(count) / float64(max)
			}

			cells = append(cells, dto.HeatmapCell{
				DayOfWeek: dow,
				Hour:      hour,
				Count:     count,
				Intensity: intensity,
			})

			if max > 0 && count == max && peak == nil {
				cell := cells[len(cells)-1]
				peak = &cell
			}
		}
	}

	return cells, peak
}

// ==================== REVENUE ====================

func (svc *AnalyticsService) GetRevenueTrend(userID string, windowDays int) (*dto.RevenueTrendResponse, error) {
	windowDays = normalizeWindowDays(windowDays)
	since := svc.nowFn().UTC().AddDate(0, 0, -windowDays)

	rows, err := svc.sqlSvc.RevenueTrendRows(userID, since)
	if err != nil {
		return nil, err
	}

	points := make([]dto.RevenuePoint, 0, len(rows))
	for _, row := range rows {
		points = append(points, dto.RevenuePoint{
			Bucket:      row.Bucket,
			Conversions: row.Conversions,
			Revenue:     row.Revenue,
		})
	}

	return &dto.RevenueTrendResponse{
		WindowDays: windowDays,
		Points:     points,
	}, nil
}

// ==================== REFERER NORMALIZATION ====================

var knownReferers = map[string]string{
	"t.me":           "Telegram",
	"telegram.me":    "Telegram",
	"telegram.org":   "Telegram",
	"instagram.com":  "Instagram",
	"facebook.com":   "Facebook",
	"fb.com":         "Facebook",
	"twitter.com":    "Twitter",
	"x.com":          "X",
	"youtube.com":    "YouTube",
	"youtu.be":       "YouTube",
	"whatsapp.com":   "WhatsApp",
	"wa.me":          "WhatsApp",
	"tiktok.com":     "TikTok",
	"linkedin.com":   "LinkedIn",
	"lnkd.in":        "LinkedIn",
	"reddit.com":     "Reddit",
	"pinterest.com":  "Pinterest",
	"google.com":     "Google",
	"bing.com":       "Bing",
	"duckduckgo.com": "DuckDuckGo",
	"yahoo.com":      "Yahoo",
}

// NormalizeReferer maps any referer string to exactly one label. Known
// platforms get canonical names, empty input is direct traffic, everything
// else reduces to its registrable domain, title-cased. Never errors.
func NormalizeReferer(referer string) string {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return shared.RefererDirect
	}

	host := referer
	if parsed, err := url.Parse(referer); err == nil && parsed.Host != "" {
		host = parsed.Host
	}
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")
	if idx := strings.Index(host, ":"); idx >= 0 {
		host = host[:idx]
	}
	if host == "" {
		return shared.RefererDirect
	}

	for domain, label := range knownReferers {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return label
		}
	}

	// Country-TLD search variants (google.it, google.co.uk, ...).
	if strings.HasPrefix(host, "google.") {
		return "Google"
	}

	return titleCaseDomain(registrableDomain(host))
}

// registrableDomain keeps the last two labels of a host. Multi-part public
// suffixes are not special-cased, the mapping only has to be deterministic.
func registrableDomain(host string) string {
	parts := strings.Split(host, ".")
	if len(parts) <= 2 {
		return host
	}
	return strings.Join(parts[len(parts)-2:], ".")
}

func titleCaseDomain(domain string) string {
	name := domain
	if idx := strings.Index(domain, "."); idx > 0 {
		name = domain[:idx]
	}
	if name == "" {
		return shared.RefererDirect
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
