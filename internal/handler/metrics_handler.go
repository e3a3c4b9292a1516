package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/SergeiKhy/ad-tracker/internal/repository"
	"github.com/SergeiKhy/ad-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MetricsHandler struct {
	dashboard service.DashboardService
	logger    *zap.Logger
}

func NewMetricsHandler(dashboard service.DashboardService, logger *zap.Logger) *MetricsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsHandler{
		dashboard: dashboard,
		logger:    logger,
	}
}

// Overview godoc
// @Summary Platform-wide KPI snapshot
// @Tags analytics
// @Produce json
// @Success 200 {object} models.DashboardOverview
// @Router /dashboard/overview [get]
func (h *MetricsHandler) Overview(c *gin.Context) {
	overview, err := h.dashboard.Overview(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to build overview", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Не удалось собрать показатели",
		})
		return
	}

	c.JSON(http.StatusOK, overview)
}

// SiteMetrics godoc
// @Summary Totals for one site
// @Tags analytics
// @Produce json
// @Param site_id query int true "Site ID"
// @Success 200 {object} models.EntityMetrics
// @Failure 400 {object} ErrorResponse
// @Router /metrics/site [get]
func (h *MetricsHandler) SiteMetrics(c *gin.Context) {
	siteID, err := strconv.ParseInt(c.Query("site_id"), 10, 64)
	if err != nil || siteID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_site_id",
			Message: "Параметр site_id обязателен",
		})
		return
	}

	m, err := h.dashboard.SiteMetrics(c.Request.Context(), siteID)
	if err != nil {
		h.logger.Warn("Failed to get site metrics", zap.Int64("site_id", siteID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Не удалось получить метрики площадки",
		})
		return
	}

	c.JSON(http.StatusOK, m)
}

// AllSiteMetrics godoc
// @Summary Totals for all sites
// @Tags analytics
// @Produce json
// @Success 200 {array} models.EntityMetrics
// @Router /metrics/sites [get]
func (h *MetricsHandler) AllSiteMetrics(c *gin.Context) {
	m, err := h.dashboard.AllSiteMetrics(c.Request.Context())
	if err != nil {
		h.logger.Warn("Failed to list site metrics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Не удалось получить метрики площадок",
		})
		return
	}

	c.JSON(http.StatusOK, m)
}

// AdMetrics godoc
// @Summary Totals for one ad
// @Tags analytics
// @Produce json
// @Param ad_id query int true "Ad ID"
// @Success 200 {object} models.EntityMetrics
// @Failure 400 {object} ErrorResponse
// @Router /metrics/ad [get]
func (h *MetricsHandler) AdMetrics(c *gin.Context) {
	adID, err := strconv.ParseInt(c.Query("ad_id"), 10, 64)
	if err != nil || adID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_ad_id",
			Message: "Параметр ad_id обязателен",
		})
		return
	}

	m, err := h.dashboard.AdMetrics(c.Request.Context(), adID)
	if err != nil {
		h.logger.Warn("Failed to get ad metrics", zap.Int64("ad_id", adID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Не удалось получить метрики объявления",
		})
		return
	}

	c.JSON(http.StatusOK, m)
}

// AllAdMetrics godoc
// @Summary Totals for all ads
// @Tags analytics
// @Produce json
// @Success 200 {array} models.EntityMetrics
// @Router /metrics/ads [get]
func (h *MetricsHandler) AllAdMetrics(c *gin.Context) {
	m, err := h.dashboard.AllAdMetrics(c.Request.Context())
	if err != nil {
		h.logger.Warn("Failed to list ad metrics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Не удалось получить метрики объявлений",
		})
		return
	}

	c.JSON(http.StatusOK, m)
}

// HourlyMetrics godoc
// @Summary Hourly metric rows
// @Tags analytics
// @Produce json
// @Param site_id query int false "Site filter"
// @Param ad_id query int false "Ad filter"
// @Param hours query int false "Number of hours" default(24)
// @Success 200 {array} models.MetricRow
// @Router /metrics/hourly [get]
func (h *MetricsHandler) HourlyMetrics(c *gin.Context) {
	hours := parseSpan(c.Query("hours"), 24, 168)
	filter := parseEventFilter(c)

	rows, err := h.dashboard.HourlyMetrics(c.Request.Context(), filter, hours)
	if err != nil {
		h.logger.Warn("Failed to list hourly metrics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Не удалось получить часовые метрики",
		})
		return
	}

	c.JSON(http.StatusOK, rows)
}

// DailyMetrics godoc
// @Summary Daily metric rows
// @Tags analytics
// @Produce json
// @Param site_id query int false "Site filter"
// @Param ad_id query int false "Ad filter"
// @Param days query int false "Number of days" default(7)
// @Success 200 {array} models.MetricRow
// @Router /metrics/daily [get]
func (h *MetricsHandler) DailyMetrics(c *gin.Context) {
	days := parseSpan(c.Query("days"), 7, 90)
	filter := parseEventFilter(c)

	rows, err := h.dashboard.DailyMetrics(c.Request.Context(), filter, days)
	if err != nil {
		h.logger.Warn("Failed to list daily metrics", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Не удалось получить суточные метрики",
		})
		return
	}

	c.JSON(http.StatusOK, rows)
}

// parseSpan разбирает размер окна с дефолтом и верхней границей
func parseSpan(raw string, def, max int) int {
	span := def
	if raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &span); err != nil || span < 1 || span > max {
			span = def
		}
	}
	return span
}

// parseEventFilter разбирает опциональные site_id/ad_id фильтры
func parseEventFilter(c *gin.Context) repository.EventFilter {
	var filter repository.EventFilter
	if raw := c.Query("site_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			filter.SiteID = &id
		}
	}
	if raw := c.Query("ad_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			filter.AdID = &id
		}
	}
	return filter
}
