package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jenz26/afflyt/model"

	appContext "github.com/cloakd/common/context"
	appServices "github.com/cloakd/common/services"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type PostgresService struct {
	appServices.DefaultService
	db *gorm.DB

	database string
}

const POSTGRES_SVC = "postgres_svc"

func (ds PostgresService) Id() string {
	return POSTGRES_SVC
}

func (ds PostgresService) Db() *gorm.DB {
	return ds.db
}

func (ds *PostgresService) Configure(ctx *appContext.Context) error {
	ds.database = os.Getenv("DATABASE_URL")
	if ds.database == "" {
		// Fallback to individual environment variables
		host := os.Getenv("DB_HOST")
		if host == "" {
			host = "localhost"
		}
		port := os.Getenv("DB_PORT")
		if port == "" {
			port = "5432"
		}
		user := os.Getenv("DB_USER")
		if user == "" {
			user = "postgres"
		}
		password := os.Getenv("DB_PASSWORD")
		if password == "" {
			password = "postgres"
		}
		dbname := os.Getenv("DB_NAME")
		if dbname == "" {
			dbname = "afflyt"
		}
		sslmode := os.Getenv("DB_SSLMODE")
		if sslmode == "" {
			sslmode = "disable"
		}
		timezone := os.Getenv("DB_TIMEZONE")
		if timezone == "" {
			timezone = "UTC"
		}

		ds.database = fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			host, user, password, dbname, port, sslmode, timezone)
	}

	return ds.DefaultService.Configure(ctx)
}

func (ds *PostgresService) Start() (err error) {
	// Retry connection with exponential backoff
	maxRetries := 10
	retryDelay := time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Printf("Attempting to connect to database (attempt %d/%d)...", attempt, maxRetries)

		ds.db, err = gorm.Open(postgres.Open(ds.database), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Error),
			TranslateError: true,
		})

		if err == nil {
			sqlDB, dbErr := ds.db.DB()
			if dbErr == nil {
				pingErr := sqlDB.Ping()
				if pingErr == nil {
					log.Println("Successfully connected to database")
					break
				}
				err = pingErr
			} else {
				err = dbErr
			}
		}

		if attempt == maxRetries {
			log.Printf("Failed to connect to database after %d attempts: %v", maxRetries, err)
			return err
		}

		log.Printf("Database connection failed: %v. Retrying in %v...", err, retryDelay)
		time.Sleep(retryDelay)

		retryDelay *= 2
		if retryDelay > 10*time.Second {
			retryDelay = 10 * time.Second
		}
	}

	models := []interface{}{
		&model.AffiliateLink{},
		&model.ClickEvent{},
		&model.Conversion{},
		&model.Channel{},
	}

	err = ds.db.AutoMigrate(models...)
	if err != nil {
		log.Printf("Failed to migrate database: %v", err)
		return err
	}

	log.Println("Database connected and migrated successfully")
	return nil
}

func (ds *PostgresService) Shutdown() {
	sqlDB, err := ds.db.DB()
	if err == nil {
		sqlDB.Close()
	}
}

func (ds *PostgresService) HandleError(err error) error {
	if err == nil {
		return nil
	}

	var statusCode int
	var errorType string

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		statusCode = http.StatusNotFound
		errorType = "NOT_FOUND"
	case errors.Is(err, gorm.ErrDuplicatedKey):
		statusCode = http.StatusConflict
		errorType = "CONFLICT"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		statusCode = http.StatusBadRequest
		errorType = "FOREIGN_KEY_VIOLATION"
	case errors.Is(err, gorm.ErrInvalidTransaction):
		statusCode = http.StatusInternalServerError
		errorType = "TRANSACTION_ERROR"
	default:
		if strings.Contains(err.Error(), "duplicate key value violates unique constraint") {
			statusCode = http.StatusConflict
			errorType = "UNIQUE_CONSTRAINT"
		} else if strings.Contains(err.Error(), "connection refused") {
			statusCode = http.StatusServiceUnavailable
			errorType = "DATABASE_CONNECTION_ERROR"
		} else {
			statusCode = http.StatusInternalServerError
			errorType = "INTERNAL_ERROR"
		}
	}

	logEntry := log.WithFields(log.Fields{
		"status_code": statusCode,
		"error_type":  errorType,
		"error":       err.Error(),
	})

	if statusCode >= 500 {
		logEntry.Error("Database error occurred")
	} else {
		logEntry.Warn("Database operation failed")
	}

	return fmt.Errorf("%s: %w", errorType, err)
}

// IsDuplicateKeyError reports whether err came from a unique-constraint
// violation, which the link creator treats as a hash collision.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

// ==================== LINKS ====================

func (ds *PostgresService) CreateLink(link *model.AffiliateLink) error {
	return ds.db.Create(link).Error
}

func (ds *PostgresService) GetLinkByHash(hash string) (*model.AffiliateLink, error) {
	var link model.AffiliateLink
	if err := ds.db.Where("hash = ?", hash).First(&link).Error; err != nil {
		return nil, err
	}
	return &link, nil
}

func (ds *PostgresService) ListLinksByUser(userID string, limit, offset int) ([]model.AffiliateLink, int64, error) {
	var links []model.AffiliateLink
	var total int64

	if err := ds.db.Model(&model.AffiliateLink{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := ds.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&links).Error; err != nil {
		return nil, 0, err
	}

	return links, total, nil
}

func (ds *PostgresService) DeactivateLink(userID, hash string) error {
	result := ds.db.Model(&model.AffiliateLink{}).
		Where("user_id = ? AND hash = ?", userID, hash).
		Updates(map[string]interface{}{
			"is_active":  false,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementLinkClicks bumps click_count, and unique_click_count iff unique.
// Both run as a single atomic UPDATE.
func (ds *PostgresService) IncrementLinkClicks(hash string, unique bool) error {
	updates := map[string]interface{}{
		"click_count": gorm.Expr("click_count + 1"),
		"updated_at":  time.Now(),
	}
	if unique {
		updates["unique_click_count"] = gorm.Expr("unique_click_count + 1")
	}

	return ds.db.Model(&model.AffiliateLink{}).
		Where("hash = ?", hash).
		Updates(updates).Error
}

func (ds *PostgresService) IncrementLinkConversion(hash string, revenue float64) error {
	return ds.db.Model(&model.AffiliateLink{}).
		Where("hash = ?", hash).
		Updates(map[string]interface{}{
			"conversion_count": gorm.Expr("conversion_count + 1"),
			"revenue":          gorm.Expr("revenue + ?", revenue),
			"updated_at":       time.Now(),
		}).Error
}

// ==================== CHANNELS ====================

func (ds *PostgresService) CreateChannel(channel *model.Channel) error {
	return ds.db.Create(channel).Error
}

func (ds *PostgresService) GetChannel(id string) (*model.Channel, error) {
	var channel model.Channel
	if err := ds.db.Where("id = ?", id).First(&channel).Error; err != nil {
		return nil, err
	}
	return &channel, nil
}

func (ds *PostgresService) IncrementChannelClicks(id string, unique bool) error {
	updates := map[string]interface{}{
		"click_count": gorm.Expr("click_count + 1"),
		"updated_at":  time.Now(),
	}
	if unique {
		updates["unique_click_count"] = gorm.Expr("unique_click_count + 1")
	}

	return ds.db.Model(&model.Channel{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// ==================== CLICK EVENTS ====================

func (ds *PostgresService) CreateClickEvent(event *model.ClickEvent) error {
	return ds.db.Create(event).Error
}

// CountClicksByIPAndHashSince backs the uniqueness oracle: prior events from
// the same IP on the same link within the trailing window.
func (ds *PostgresService) CountClicksByIPAndHashSince(ip, hash string, since time.Time) (int64, error) {
	var count int64
	err := ds.db.Model(&model.ClickEvent{}).
		Where("ip = ? AND link_hash = ? AND created_at >= ?", ip, hash, since).
		Count(&count).Error
	return count, err
}

// ==================== CONVERSIONS ====================

func (ds *PostgresService) CreateConversion(conversion *model.Conversion) error {
	return ds.db.Create(conversion).Error
}

// ==================== ANALYTICS QUERIES ====================

type TrendRow struct {
	Bucket       string `gorm:"column:bucket"`
	Clicks       int64  `gorm:"column:clicks"`
	UniqueClicks int64  `gorm:"column:unique_clicks"`
}

var trendBucketUnits = map[string]string{
	"hour":  "hour",
	"day":   "day",
	"week":  "week",
	"month": "month",
}

// ClickTrendRows groups clicks per calendar bucket. The unit is mapped
// through a whitelist before reaching SQL.
func (ds *PostgresService) ClickTrendRows(userID string, since time.Time, bucket string) ([]TrendRow, error) {
	unit, ok := trendBucketUnits[bucket]
	if !ok {
		unit = "day"
	}

	var rows []TrendRow
	err := ds.db.Raw(fmt.Sprintf(`
		SELECT to_char(date_trunc('%s', created_at), 'YYYY-MM-DD"T"HH24:MI:SS') AS bucket,
		       COUNT(*) AS clicks,
		       COUNT(*) FILTER (WHERE is_unique) AS unique_clicks
		FROM click_events
		WHERE user_id = ? AND created_at >= ?
		GROUP BY 1
		ORDER BY 1 ASC
	`, unit), userID, since).Scan(&rows).Error

	return rows, err
}

type LabelCountRow struct {
	Label string `gorm:"column:label"`
	Count int64  `gorm:"column:count"`
}

var distributionColumns = map[string]string{
	"country": "country",
	"device":  "device",
	"referer": "referer",
	"sub_id":  "sub_id",
}

// DistributionRows groups clicks by a categorical column. Referer rows come
// back raw, normalization and re-merging happen in the analytics service.
func (ds *PostgresService) DistributionRows(userID, dimension string, since time.Time) ([]LabelCountRow, error) {
	column, ok := distributionColumns[dimension]
	if !ok {
		return nil, fmt.Errorf("unknown distribution dimension %q", dimension)
	}

	var rows []LabelCountRow
	err := ds.db.Raw(fmt.Sprintf(`
		SELECT COALESCE(%s, '') AS label, COUNT(*) AS count
		FROM click_events
		WHERE user_id = ? AND created_at >= ?
		GROUP BY 1
		ORDER BY 2 DESC
	`, column), userID, since).Scan(&rows).Error

	return rows, err
}

type HeatmapRow struct {
	DayOfWeek int   `gorm:"column:dow"`
	Hour      int   `gorm:"column:hour"`
	Count     int64 `gorm:"column:count"`
}

func (ds *PostgresService) HeatmapRows(userID string, since time.Time) ([]HeatmapRow, error) {
	var rows []HeatmapRow
	err := ds.db.Raw(`
		SELECT EXTRACT(dow FROM created_at)::int AS dow,
		       EXTRACT(hour FROM created_at)::int AS hour,
		       COUNT(*) AS count
		FROM click_events
		WHERE user_id = ? AND created_at >= ?
		GROUP BY 1, 2
	`, userID, since).Scan(&rows).Error

	return rows, err
}

type RevenueRow struct {
	Bucket      string  `gorm:"column:bucket"`
	Conversions int64   `gorm:"column:conversions"`
	Revenue     float64 `gorm:"column:revenue"`
}

func (ds *PostgresService) RevenueTrendRows(userID string, since time.Time) ([]RevenueRow, error) {
	var rows []RevenueRow
	err := ds.db.Raw(`
		SELECT to_char(date_trunc('day', created_at), 'YYYY-MM-DD') AS bucket,
		       COUNT(*) AS conversions,
		       COALESCE(SUM(revenue), 0) AS revenue
		FROM conversions
		WHERE user_id = ? AND created_at >= ?
		GROUP BY 1
		ORDER BY 1 ASC
	`, userID, since).Scan(&rows).Error

	return rows, err
}
