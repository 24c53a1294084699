package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	appContext "github.com/cloakd/common/context"
	appServices "github.com/cloakd/common/services"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/jenz26/afflyt/dto"
	"github.com/jenz26/afflyt/shared"
	log "github.com/sirupsen/logrus"
)

type RateLimitService struct {
	appServices.DefaultService

	configs map[string]*RateLimitConfig
	mutex   sync.RWMutex

	store WindowStore
	nowFn func() time.Time

	redisSvc  *RedisService
	memSvc    *MemoryStoreService
	statusSvc *MonitoringService
}

// RateLimitConfig is one route class budget. The window slides: only
// requests inside the trailing Window count, never fixed calendar buckets.
type RateLimitConfig struct {
	EndpointType string
	MaxRequests  int
	Window       time.Duration
	Description  string
	IsActive     bool
}

const RATE_LIMIT_SVC = "rate_limit_svc"

func (svc *RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *appContext.Context) error {
	svc.configs = make(map[string]*RateLimitConfig)
	if svc.nowFn == nil {
		svc.nowFn = time.Now
	}
	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	svc.memSvc = svc.Service(MEMORY_STORE_SVC).(*MemoryStoreService)
	if s := svc.Service(MONITORING_SVC); s != nil {
		svc.statusSvc = s.(*MonitoringService)
	}

	svc.store = NewDegradingStore(newRedisWindowStore(svc.redisSvc), svc.memSvc, 30*time.Second, svc.nowFn)
	svc.initDefaultConfigs()

	return nil
}

func (svc *RateLimitService) initDefaultConfigs() {
	svc.mutex.Lock()
	defer svc.mutex.Unlock()

	svc.configs = map[string]*RateLimitConfig{
		"api_general": {
			EndpointType: "api_general",
			MaxRequests:  100,
			Window:       time.Minute,
			Description:  "General traffic rate limit per IP",
			IsActive:     true,
		},
		"api_key": {
			EndpointType: "api_key",
			MaxRequests:  300,
			Window:       time.Minute,
			Description:  "Authenticated API traffic rate limit per key",
			IsActive:     true,
		},
		"auth_attempt": {
			EndpointType: "auth_attempt",
			MaxRequests:  10,
			Window:       15 * time.Minute,
			Description:  "Authentication attempt rate limit",
			IsActive:     true,
		},
		"redirect": {
			EndpointType: "redirect",
			MaxRequests:  60,
			Window:       time.Minute,
			Description:  "Redirect/track rate limit per IP",
			IsActive:     true,
		},
	}
}

// ==================== CORE SLIDING WINDOW LOGIC ====================

// Allow admits or rejects one request for identifier under the endpoint
// type's budget. Every storage failure fails open: protecting availability
// of the service beats precise limiting.
func (svc *RateLimitService) Allow(identifier, endpointType string) (bool, *dto.RateLimitInfo) {
	svc.mutex.RLock()
	config, exists := svc.configs[endpointType]
	svc.mutex.RUnlock()

	if !exists || !config.IsActive {
		return true, &dto.RateLimitInfo{Allowed: true, Remaining: -1}
	}

	ctx := context.Background()
	key := windowKey(endpointType, identifier)
	now := svc.nowFn()
	windowStart := now.Add(-config.Window)

	timestamps, err := svc.loadWindow(ctx, key)
	if err != nil {
		log.WithError(err).WithFields(log.Fields{
			"endpoint_type": endpointType,
			"identifier":    identifier,
		}).Warn("Rate limit window read failed, failing open")
		return true, &dto.RateLimitInfo{Allowed: true, Remaining: -1}
	}

	// Drop entries that slid out of the trailing window.
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if !time.UnixMilli(ts).Before(windowStart) {
			kept = append(kept, ts)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i] < kept[j] })

	if len(kept) >= config.MaxRequests {
		resetAt := time.UnixMilli(kept[0]).Add(config.Window)
		if svc.statusSvc != nil {
			svc.statusSvc.RecordRateLimitRejection(endpointType)
		}
		return false, &dto.RateLimitInfo{
			Allowed:   false,
			Remaining: 0,
			ResetAt:   &resetAt,
		}
	}

	kept = append(kept, now.UnixMilli())
	if err := svc.saveWindow(ctx, key, kept, config.Window); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"endpoint_type": endpointType,
			"identifier":    identifier,
		}).Warn("Rate limit window write failed, failing open")
		return true, &dto.RateLimitInfo{Allowed: true, Remaining: -1}
	}

	resetAt := time.UnixMilli(kept[0]).Add(config.Window)
	return true, &dto.RateLimitInfo{
		Allowed:   true,
		Remaining: config.MaxRequests - len(kept),
		ResetAt:   &resetAt,
	}
}

func windowKey(endpointType, identifier string) string {
	return fmt.Sprintf("ratelimit:%s:%s", endpointType, identifier)
}

func (svc *RateLimitService) loadWindow(ctx context.Context, key string) ([]int64, error) {
	raw, found, err := svc.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return nil, nil
	}

	var timestamps []int64
	if err := sonic.UnmarshalString(raw, &timestamps); err != nil {
		// A corrupt window is discarded rather than counted against the
		// caller.
		return nil, nil
	}
	return timestamps, nil
}

func (svc *RateLimitService) saveWindow(ctx context.Context, key string, timestamps []int64, ttl time.Duration) error {
	raw, err := sonic.MarshalString(timestamps)
	if err != nil {
		return err
	}
	return svc.store.Set(ctx, key, raw, ttl)
}

// Reset clears the stored window for an identifier.
func (svc *RateLimitService) Reset(identifier, endpointType string) error {
	return svc.store.Delete(context.Background(), windowKey(endpointType, identifier))
}

// ==================== MIDDLEWARE FUNCTIONS ====================

// RateLimit creates a rate limiting middleware for a route class.
func (svc *RateLimitService) RateLimit(endpointType string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := svc.getIdentifier(c, endpointType)

		allowed, info := svc.Allow(identifier, endpointType)
		svc.addRateLimitHeaders(c, endpointType, info)

		if !allowed {
			return svc.handleRateLimitExceeded(c, endpointType, info)
		}

		return c.Next()
	}
}

// IPRateLimit applies the general budget keyed by caller IP.
func (svc *RateLimitService) IPRateLimit() fiber.Handler {
	return svc.RateLimit("api_general")
}

// APIKeyRateLimit applies the authenticated-API budget keyed by API key,
// composite with IP so a leaked key cannot starve its real owner from one
// address.
func (svc *RateLimitService) APIKeyRateLimit() fiber.Handler {
	return svc.RateLimit("api_key")
}

func (svc *RateLimitService) getIdentifier(c *fiber.Ctx, endpointType string) string {
	switch endpointType {
	case "api_key":
		apiKey := getAPIKey(c)
		if apiKey != "" {
			return fmt.Sprintf("%s:%s", getClientIP(c), apiKey)
		}
		return getClientIP(c)

	case "auth_attempt":
		apiKey := getAPIKey(c)
		if apiKey != "" {
			return fmt.Sprintf("%s:%s", getClientIP(c), apiKey)
		}
		return getClientIP(c)

	default:
		return getClientIP(c)
	}
}

func (svc *RateLimitService) addRateLimitHeaders(c *fiber.Ctx, endpointType string, info *dto.RateLimitInfo) {
	if info == nil {
		return
	}

	svc.mutex.RLock()
	config, exists := svc.configs[endpointType]
	svc.mutex.RUnlock()
	if exists {
		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
	}

	if info.Remaining >= 0 {
		c.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
	}

	if info.ResetAt != nil {
		c.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

		if !info.Allowed {
			retryAfter := int(time.Until(*info.ResetAt).Seconds())
			if retryAfter > 0 {
				c.Set("Retry-After", strconv.Itoa(retryAfter))
			}
		}
	}
}

func (svc *RateLimitService) handleRateLimitExceeded(c *fiber.Ctx, endpointType string, info *dto.RateLimitInfo) error {
	response := map[string]interface{}{
		"error": "Rate limit exceeded",
	}
	if info.ResetAt != nil {
		response["reset_at"] = info.ResetAt.Unix()
	}

	return shared.ResponseJSON(c, http.StatusTooManyRequests, svc.getRateLimitMessage(endpointType), response)
}

func (svc *RateLimitService) getRateLimitMessage(endpointType string) string {
	messages := map[string]string{
		"api_general":  "Too many requests. Please slow down.",
		"api_key":      "API rate limit exceeded for this key.",
		"auth_attempt": "Too many authentication attempts. Please try again later.",
		"redirect":     "Too many redirects from this address. Please slow down.",
	}

	if message, exists := messages[endpointType]; exists {
		return message
	}

	return "Too many requests. Please try again later."
}

// ==================== CONFIG MANAGEMENT ====================

func (svc *RateLimitService) GetConfig(endpointType string) (*RateLimitConfig, bool) {
	svc.mutex.RLock()
	defer svc.mutex.RUnlock()

	config, exists := svc.configs[endpointType]
	if !exists {
		return nil, false
	}
	copied := *config
	return &copied, true
}

func (svc *RateLimitService) SetConfig(config *RateLimitConfig) {
	svc.mutex.Lock()
	svc.configs[config.EndpointType] = config
	svc.mutex.Unlock()
}

// ==================== UTILITY FUNCTIONS ====================

func getClientIP(c *fiber.Ctx) string {
	forwarded := c.Get("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			ip := strings.TrimSpace(ips[0])
			if ip != "" {
				return ip
			}
		}
	}

	realIP := c.Get("X-Real-IP")
	if realIP != "" {
		return realIP
	}

	cfIP := c.Get("CF-Connecting-IP")
	if cfIP != "" {
		return cfIP
	}

	ip, _, err := net.SplitHostPort(c.Context().RemoteAddr().String())
	if err != nil {
		return c.Context().RemoteAddr().String()
	}

	return ip
}

func getAPIKey(c *fiber.Ctx) string {
	if key := c.Get("X-Api-Key"); key != "" {
		return key
	}

	auth := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	return ""
}
