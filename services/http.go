package services

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	appContext "github.com/cloakd/common/context"
	appServices "github.com/cloakd/common/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"

	"github.com/jenz26/afflyt/dto"
	"github.com/jenz26/afflyt/shared"
)

type HttpService struct {
	appServices.DefaultService

	linkSvc       *LinkService
	clickSvc      *ClickService
	conversionSvc *ConversionService
	analyticsSvc  *AnalyticsService
	rateLimitSvc  *RateLimitService
	statusSvc     *MonitoringService

	port   int
	server *fiber.App
}

const HTTP_SVC = "http_svc"

func (svc HttpService) Id() string {
	return HTTP_SVC
}

func (svc *HttpService) Configure(ctx *appContext.Context) error {
	if port := os.Getenv("HTTP_PORT"); port != "" {
		var err error
		if svc.port, err = strconv.Atoi(port); err != nil {
			return err
		}
	} else {
		svc.port = 8000
	}

	return svc.DefaultService.Configure(ctx)
}

func (svc *HttpService) Start() error {
	svc.linkSvc = svc.Service(LINK_SVC).(*LinkService)
	svc.clickSvc = svc.Service(CLICK_SVC).(*ClickService)
	svc.conversionSvc = svc.Service(CONVERSION_SVC).(*ConversionService)
	svc.analyticsSvc = svc.Service(ANALYTICS_SVC).(*AnalyticsService)
	svc.rateLimitSvc = svc.Service(RATE_LIMIT_SVC).(*RateLimitService)
	svc.statusSvc = svc.Service(MONITORING_SVC).(*MonitoringService)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			svc.HandleError(c, err)
			return nil
		},
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Api-Key, X-User-ID",
	}))
	app.Use(MonitoringMiddleware(svc.statusSvc))

	app.Get("/ping", svc.ping)
	app.Get("/swagger/*", swagger.HandlerDefault)

	v1 := app.Group("/api/v1", svc.rateLimitSvc.APIKeyRateLimit())

	v1.Get("/ping", svc.ping)
	v1.Post("/links", svc.createLink)
	v1.Get("/links", svc.listLinks)
	v1.Delete("/links/:hash", svc.deactivateLink)
	v1.Post("/conversions", svc.recordConversion)

	analytics := v1.Group("/analytics")
	analytics.Get("/trend", svc.getTrend)
	analytics.Get("/distribution", svc.getDistribution)
	analytics.Get("/heatmap", svc.getHeatmap)
	analytics.Get("/revenue", svc.getRevenueTrend)

	// Redirect/track is registered last so it never shadows API routes.
	app.Get("/:hash", svc.rateLimitSvc.RateLimit("redirect"), svc.redirect)

	svc.server = app
	return app.Listen(fmt.Sprintf(":%v", svc.port))
}

func (svc *HttpService) Shutdown() {
	if svc.server != nil {
		_ = svc.server.Shutdown()
	}
}

// @Summary Ping
// @Description This endpoint checks the health of the service
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=string}
// @Router /ping [get]
func (svc *HttpService) ping(c *fiber.Ctx) error {
	c.Set("Cache-Control", "max-age=10")
	return shared.ResponseJSON(c, http.StatusOK, "Success", "pong")
}

// @Summary Create a short affiliate link
// @Tags links
// @Accept json
// @Produce json
// @Param request body dto.CreateLinkRequest true "Link to shorten"
// @Success 201 {object} shared.Response{data=dto.CreateLinkResponse}
// @Router /api/v1/links [post]
func (svc *HttpService) createLink(c *fiber.Ctx) error {
	userID := requestUserID(c)
	if userID == "" {
		return shared.ResponseBadRequest(c, "Missing X-User-ID header")
	}

	var req dto.CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.ResponseBadRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return shared.ResponseJSON(c, http.StatusBadRequest, "Validation failed", dto.FormatValidationErrors(err))
	}

	link, err := svc.linkSvc.CreateLink(userID, req)
	if err != nil {
		return svc.HandleErrorResponse(c, err)
	}

	return shared.ResponseCreated(c, dto.CreateLinkResponse{Link: link})
}

// @Summary List the caller's links
// @Tags links
// @Produce json
// @Success 200 {object} shared.Response{data=dto.ListLinksResponse}
// @Router /api/v1/links [get]
func (svc *HttpService) listLinks(c *fiber.Ctx) error {
	userID := requestUserID(c)
	if userID == "" {
		return shared.ResponseBadRequest(c, "Missing X-User-ID header")
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	links, total, err := svc.linkSvc.ListLinks(userID, limit, offset)
	if err != nil {
		return svc.HandleErrorResponse(c, err)
	}

	return shared.ResponseOK(c, dto.ListLinksResponse{Links: links, Total: total})
}

// @Summary Deactivate a link
// @Tags links
// @Produce json
// @Param hash path string true "Link hash"
// @Success 200 {object} shared.Response
// @Router /api/v1/links/{hash} [delete]
func (svc *HttpService) deactivateLink(c *fiber.Ctx) error {
	userID := requestUserID(c)
	if userID == "" {
		return shared.ResponseBadRequest(c, "Missing X-User-ID header")
	}

	if err := svc.linkSvc.DeactivateLink(userID, c.Params("hash")); err != nil {
		return svc.HandleErrorResponse(c, err)
	}

	return shared.ResponseOK(c, nil)
}

// @Summary Record a conversion against a link
// @Tags conversions
// @Accept json
// @Produce json
// @Param request body dto.RecordConversionRequest true "Conversion"
// @Success 201 {object} shared.Response{data=dto.RecordConversionResponse}
// @Router /api/v1/conversions [post]
func (svc *HttpService) recordConversion(c *fiber.Ctx) error {
	var req dto.RecordConversionRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.ResponseBadRequest(c, "Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return shared.ResponseJSON(c, http.StatusBadRequest, "Validation failed", dto.FormatValidationErrors(err))
	}

	conversion, err := svc.conversionSvc.RecordConversion(req)
	if err != nil {
		return svc.HandleErrorResponse(c, err)
	}

	return shared.ResponseCreated(c, dto.RecordConversionResponse{Conversion: conversion})
}

// @Summary Redirect through a short link, recording the click
// @Tags redirect
// @Param hash path string true "Link hash"
// @Success 302
// @Router /{hash} [get]
func (svc *HttpService) redirect(c *fiber.Ctx) error {
	input := dto.ClickInput{
		LinkHash:  c.Params("hash"),
		IP:        getClientIP(c),
		UserAgent: c.Get(fiber.HeaderUserAgent),
		Referer:   c.Get(fiber.HeaderReferer),
		SessionID: c.Cookies("afflyt_session"),
		SubID:     c.Query("sub_id"),
	}
	if trackingID := c.Query("tracking_id"); trackingID != "" {
		input.TrackingID = &trackingID
	}

	event, err := svc.clickSvc.RecordClick(input)
	if err != nil {
		return svc.HandleErrorResponse(c, err)
	}

	link, err := svc.linkSvc.GetLink(event.LinkHash)
	if err != nil {
		return svc.HandleErrorResponse(c, err)
	}

	return c.Redirect(link.DestinationURL, fiber.StatusFound)
}

// @Summary Click trend over a trailing window
// @Tags analytics
// @Produce json
// @Param days query int false "Trailing window in days (1, 7, 30, 90, 365)"
// @Param bucket query string false "Bucket size (hour, day, week, month)"
// @Success 200 {object} shared.Response{data=dto.TrendResponse}
// @Router /api/v1/analytics/trend [get]
func (svc *HttpService) getTrend(c *fiber.Ctx) error {
	userID := requestUserID(c)
	if userID == "" {
		return shared.ResponseBadRequest(c, "Missing X-User-ID header")
	}

	trend, err := svc.analyticsSvc.GetTrend(userID, c.QueryInt("days", 30), c.Query("bucket", "day"))
	if err != nil {
		return svc.HandleErrorResponse(c, err)
	}

	return shared.ResponseOK(c, trend)
}

// @Summary Ranked breakdown of clicks by a categorical dimension
// @Tags analytics
// @Produce json
// @Param dimension query string true "country, device, referer or sub_id"
// @Param days query int false "Trailing window in days"
// @Success 200 {object} shared.Response{data=dto.DistributionResponse}
// @Router /api/v1/analytics/distribution [get]
func (svc *HttpService) getDistribution(c *fiber.Ctx) error {
	userID := requestUserID(c)
	if userID == "" {
		return shared.ResponseBadRequest(c, "Missing X-User-ID header")
	}

	distribution, err := svc.analyticsSvc.GetDistribution(userID, c.Query("dimension", shared.DimensionCountry), c.QueryInt("days", 30))
	if err != nil {
		return svc.HandleErrorResponse(c, err)
	}

	return shared.ResponseOK(c, distribution)
}

// @Summary Hour-of-day by day-of-week activity grid
// @Tags analytics
// @Produce json
// @Param days query int false "Trailing window in days"
// @Success 200 {object} shared.Response{data=dto.HeatmapResponse}
// @Router /api/v1/analytics/heatmap [get]
func (svc *HttpService) getHeatmap(c *fiber.Ctx) error {
	userID := requestUserID(c)
	if userID == "" {
		return shared.ResponseBadRequest(c, "Missing X-User-ID header")
	}

	heatmap, err := svc.analyticsSvc.GetHeatmap(userID, c.QueryInt("days", 30))
	if err != nil {
		return svc.HandleErrorResponse(c, err)
	}

	return shared.ResponseOK(c, heatmap)
}

// @Summary Conversion and revenue trend
// @Tags analytics
// @Produce json
// @Param days query int false "Trailing window in days"
// @Success 200 {object} shared.Response{data=dto.RevenueTrendResponse}
// @Router /api/v1/analytics/revenue [get]
func (svc *HttpService) getRevenueTrend(c *fiber.Ctx) error {
	userID := requestUserID(c)
	if userID == "" {
		return shared.ResponseBadRequest(c, "Missing X-User-ID header")
	}

	revenue, err := svc.analyticsSvc.GetRevenueTrend(userID, c.QueryInt("days", 30))
	if err != nil {
		return svc.HandleErrorResponse(c, err)
	}

	return shared.ResponseOK(c, revenue)
}

func (svc *HttpService) HandleErrorResponse(c *fiber.Ctx, err error) error {
	if appErr, ok := shared.GetAppError(err); ok {
		return shared.ResponseJSON(c, appErr.StatusCode, appErr.Message, appErr.Data)
	}
	return shared.ResponseInternalError(c, err)
}

func (svc *HttpService) HandleError(c *fiber.Ctx, err error) bool {
	if err == nil {
		return false
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		_ = shared.ResponseJSON(c, fiberErr.Code, fiberErr.Message, nil)
		return true
	}

	_ = svc.HandleErrorResponse(c, err)
	return true
}

// requestUserID identifies the link owner. Authentication is the routing
// layer's problem, this core trusts whatever identity it is handed.
func requestUserID(c *fiber.Ctx) string {
	return c.Get("X-User-ID")
}
