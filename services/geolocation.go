package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	appContext "github.com/cloakd/common/context"
	appServices "github.com/cloakd/common/services"
	log "github.com/sirupsen/logrus"
)

// GeolocationService resolves a click's source IP to a country for the
// analytics distributions. Lookups go through the volatile cache, failures
// degrade to "Unknown" and never fail the click.
type GeolocationService struct {
	appServices.DefaultService

	httpClient  *http.Client
	apiURL      string
	redisSvc    *RedisService
	cacheExpiry time.Duration
}

const GEOLOCATION_SVC = "geolocation_svc"

func (svc GeolocationService) Id() string {
	return GEOLOCATION_SVC
}

func (svc *GeolocationService) Configure(ctx *appContext.Context) error {
	svc.httpClient = &http.Client{
		Timeout: 10 * time.Second,
	}
	svc.apiURL = "http://ip-api.com/json"
	svc.cacheExpiry = 24 * time.Hour
	return svc.DefaultService.Configure(ctx)
}

func (svc *GeolocationService) Start() error {
	svc.redisSvc = svc.Service(REDIS_SVC).(*RedisService)
	return nil
}

func (svc *GeolocationService) GetCountryByIP(ip string) (string, error) {
	if ip == "" || ip == "127.0.0.1" || ip == "::1" {
		return "Local", nil
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("geolocation:country:%s", ip)

	if svc.redisSvc != nil {
		cachedCountry, err := svc.redisSvc.Get(ctx, cacheKey)
		if err == nil && cachedCountry != "" {
			log.WithField("ip", ip).Debug("Geolocation cache hit")
			return cachedCountry, nil
		}
	}

	url := fmt.Sprintf("%s/%s?fields=status,country", svc.apiURL, ip)

	resp, err := svc.httpClient.Get(url)
	if err != nil {
		log.WithError(err).WithField("ip", ip).Error("Failed to get geolocation")
		return "Unknown", nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).WithField("ip", ip).Error("Geolocation API returned non-200 status")
		return "Unknown", nil
	}

	var result struct {
		Status  string `json:"status"`
		Country string `json:"country"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.WithError(err).WithField("ip", ip).Error("Failed to decode geolocation response")
		return "Unknown", nil
	}

	if result.Status != "success" || result.Country == "" {
		log.WithField("status", result.Status).WithField("ip", ip).Warn("Geolocation lookup failed")
		return "Unknown", nil
	}

	if svc.redisSvc != nil {
		if err := svc.redisSvc.Set(ctx, cacheKey, result.Country, svc.cacheExpiry); err != nil {
			log.WithError(err).WithField("ip", ip).Debug("Failed to cache geolocation")
		}
	}

	return result.Country, nil
}
