package handler

import (
	"net/http"

	"github.com/SergeiKhy/ad-tracker/internal/metrics"
	"github.com/SergeiKhy/ad-tracker/internal/middleware"
	"github.com/SergeiKhy/ad-tracker/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func NewRouter(
	ingest service.IngestService,
	dashboard service.DashboardService,
	rollup service.RollupService,
	inventory service.InventoryService,
	siteAuth *middleware.SiteAuth,
	rateLimiter *middleware.RateLimiter,
	m *metrics.Metrics,
	logger *zap.Logger,
) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.Default()

	// Middleware для логгирования
	router.Use(func(c *gin.Context) {
		logger.Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
		)
		c.Next()
	})

	// Rate limiting: ингестия лимитируется по site-ключу, остальное по IP
	if rateLimiter != nil {
		router.Use(rateLimiter.MiddlewareWithKey(func(c *gin.Context) string {
			return c.GetHeader("X-Site-Key")
		}))
	}

	trackHandler := NewTrackHandler(ingest, m, logger)
	metricsHandler := NewMetricsHandler(dashboard, logger)
	adminHandler := NewAdminHandler(rollup, inventory, m, logger)

	router.GET("/health", HealthCheck)
	if m != nil {
		router.GET("/system/metrics", gin.WrapH(m.Handler()))
	}

	// Ингестия - только с валидным site-ключом
	track := router.Group("/")
	if siteAuth != nil {
		track.Use(siteAuth.Middleware())
	}
	{
		track.POST("/track-impression", trackHandler.TrackImpression)
		track.POST("/track-click", trackHandler.TrackClick)
	}

	// Аналитика - read-only, без site-ключа
	router.GET("/dashboard/overview", metricsHandler.Overview)
	router.GET("/metrics/site", metricsHandler.SiteMetrics)
	router.GET("/metrics/sites", metricsHandler.AllSiteMetrics)
	router.GET("/metrics/ad", metricsHandler.AdMetrics)
	router.GET("/metrics/ads", metricsHandler.AllAdMetrics)
	router.GET("/metrics/hourly", metricsHandler.HourlyMetrics)
	router.GET("/metrics/daily", metricsHandler.DailyMetrics)

	// Батч-джобы по требованию
	router.POST("/admin/refresh-views", adminHandler.RefreshViews)
	router.POST("/admin/reconcile-inventory", adminHandler.ReconcileInventory)

	return router
}

// HealthCheck godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
